package recommend

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-planner/internal/app/domain/selection"
	"github.com/FACorreiaa/loci-planner/internal/app/models"
)

// MockGateway is a mock implementation of Gateway
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) ListCandidates(ctx context.Context, date *time.Time, loc models.Location) (models.ResultSet, error) {
	args := m.Called(ctx, date, loc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(models.ResultSet), args.Error(1)
}

func (m *MockGateway) SearchCandidates(ctx context.Context, query string, pool models.ResultSet) (models.ResultSet, error) {
	args := m.Called(ctx, query, pool)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(models.ResultSet), args.Error(1)
}

// stubFilter flags the listed queries as abusive-only
type stubFilter map[string]bool

func (f stubFilter) IsAbusiveOnlyInput(text string) bool {
	return f[text]
}

var seoul = &models.Location{Latitude: 37.5665, Longitude: 126.9780, Label: "Seoul"}

func tenPlaces() models.ResultSet {
	kinds := []string{"관광지", "맛집", "쇼핑", "관광지", "맛집", "관광지", "쇼핑", "맛집", "관광지", "쇼핑"}
	rs := make(models.ResultSet, 0, len(kinds))
	for i, k := range kinds {
		p := models.Place{Name: fmt.Sprintf("Place %d", i), Type: k, Region: "Seoul"}
		if i == 0 {
			p.Name = "Seoul Tower"
		}
		rs = append(rs, p)
	}
	// classified only through its category
	rs[7].Type = "카페"
	rs[7].Category = "관광지"
	return rs
}

func newTestController(gw Gateway, filter ContentFilter) *Controller {
	return NewController(gw, filter, zap.NewNop(), Options{Rand: rand.New(rand.NewPCG(1, 2))})
}

func loadedController(t *testing.T, base models.ResultSet) (*Controller, *MockGateway) {
	t.Helper()
	gw := new(MockGateway)
	gw.On("ListCandidates", mock.Anything, (*time.Time)(nil), *seoul).Return(base, nil).Once()
	c := newTestController(gw, stubFilter{})
	require.NoError(t, c.InitialLoad(context.Background(), seoul, nil))
	return c, gw
}

func TestInitialLoad(t *testing.T) {
	tripDate := time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		date        *time.Time
		result      models.ResultSet
		err         error
		expectedErr bool
		expectedLen int
	}{
		{name: "Success", date: &tripDate, result: tenPlaces(), expectedLen: 10},
		{name: "Success without trip date", result: tenPlaces(), expectedLen: 10},
		{name: "Absent results become empty list", result: nil, expectedLen: 0},
		{name: "Server error", err: &models.ServerError{Message: "지원하지 않는 지역입니다"}, expectedErr: true},
		{name: "Transport error", err: &models.TransportError{Op: "list", Err: errors.New("connection refused")}, expectedErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gw := new(MockGateway)
			if tc.err != nil {
				gw.On("ListCandidates", mock.Anything, tc.date, *seoul).Return(nil, tc.err).Once()
			} else {
				gw.On("ListCandidates", mock.Anything, tc.date, *seoul).Return(tc.result, nil).Once()
			}
			c := newTestController(gw, stubFilter{})

			err := c.InitialLoad(context.Background(), seoul, tc.date)

			view := c.View()
			assert.False(t, view.Loading, "loading must be cleared on every exit path")
			if tc.expectedErr {
				assert.ErrorIs(t, err, tc.err)
				assert.Empty(t, view.Displayed)
				assert.Nil(t, view.Location)
			} else {
				assert.NoError(t, err)
				assert.Len(t, view.Displayed, tc.expectedLen)
				assert.NotNil(t, view.Displayed)
				assert.Equal(t, tc.expectedLen, view.BaseCount)
				assert.True(t, view.ActiveFilter.IsNone())
				assert.Equal(t, seoul, view.Location)
			}
			gw.AssertExpectations(t)
		})
	}
}

func TestInitialLoad_RequiresLocation(t *testing.T) {
	gw := new(MockGateway)
	c := newTestController(gw, stubFilter{})

	err := c.InitialLoad(context.Background(), nil, nil)

	assert.ErrorIs(t, err, models.ErrNoStartingLocation)
	gw.AssertNotCalled(t, "ListCandidates", mock.Anything, mock.Anything, mock.Anything)
}

func TestInitialLoad_ErrorKeepsPreviousLists(t *testing.T) {
	c, gw := loadedController(t, tenPlaces())
	c.ApplyKeywordFilter("맛집")
	before := c.View()

	busan := &models.Location{Latitude: 35.1796, Longitude: 129.0756, Label: "Busan"}
	gw.On("ListCandidates", mock.Anything, (*time.Time)(nil), *busan).
		Return(nil, &models.ServerError{Message: "backend says no"}).Once()

	err := c.InitialLoad(context.Background(), busan, nil)
	se, ok := models.IsServerError(err)
	require.True(t, ok)
	assert.Equal(t, "backend says no", se.Message)

	after := c.View()
	assert.Equal(t, before.Displayed, after.Displayed)
	assert.Equal(t, before.ActiveFilter, after.ActiveFilter)
	assert.Equal(t, 10, after.BaseCount)
}

func TestApplyKeywordFilter_ToggleRestoresBase(t *testing.T) {
	base := tenPlaces()
	c, _ := loadedController(t, base)

	first := c.ApplyKeywordFilter("관광지")
	assert.True(t, first.ActiveFilter.Equal(models.KeywordFilter("관광지")))

	second := c.ApplyKeywordFilter("관광지")
	assert.True(t, second.ActiveFilter.IsNone())
	assert.Equal(t, base.Names(), second.Displayed.Names())
}

func TestApplyKeywordFilter_IsPure(t *testing.T) {
	base := tenPlaces()
	c, _ := loadedController(t, base)

	for _, k := range []string{"맛집", "쇼핑", "관광지", "없는키워드"} {
		view := c.ApplyKeywordFilter(k)
		assert.Equal(t, base, c.Base(), "base list must not change")
		for _, p := range view.Displayed {
			_, ok := base.Find(p.Name)
			assert.True(t, ok, "%s is not in the base list", p.Name)
			assert.True(t, p.MatchesKeyword(k))
		}
	}
}

func TestApplyKeywordFilter_SwitchingKeywords(t *testing.T) {
	c, _ := loadedController(t, tenPlaces())

	c.ApplyKeywordFilter("맛집")
	view := c.ApplyKeywordFilter("쇼핑")

	assert.True(t, view.ActiveFilter.Equal(models.KeywordFilter("쇼핑")))
	assert.Equal(t, []string{"Place 2", "Place 6", "Place 9"}, view.Displayed.Names())
}

func TestSeoulTowerScenario(t *testing.T) {
	base := tenPlaces()
	c, _ := loadedController(t, base)

	view := c.ApplyKeywordFilter("관광지")
	assert.Equal(t, []string{"Seoul Tower", "Place 3", "Place 5", "Place 7", "Place 8"}, view.Displayed.Names())

	view = c.ApplyKeywordFilter("관광지")
	assert.Len(t, view.Displayed, 10)
	assert.Equal(t, base.Names(), view.Displayed.Names())
}

func TestApplyTodayRandom(t *testing.T) {
	tests := []struct {
		name     string
		size     int
		expected int
	}{
		{name: "Larger than pick", size: 10, expected: 7},
		{name: "Exactly pick", size: 7, expected: 7},
		{name: "Smaller than pick", size: 3, expected: 3},
		{name: "Empty", size: 0, expected: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			base := make(models.ResultSet, 0, tc.size)
			for i := 0; i < tc.size; i++ {
				base = append(base, models.Place{Name: fmt.Sprintf("P%d", i)})
			}
			c, _ := loadedController(t, base)

			view := c.ApplyTodayRandom()
			assert.Len(t, view.Displayed, tc.expected)
			assert.True(t, view.ActiveFilter.Equal(models.TodayPick))

			seen := map[string]bool{}
			for _, p := range view.Displayed {
				_, ok := base.Find(p.Name)
				assert.True(t, ok)
				assert.False(t, seen[p.Name], "sample must not repeat %s", p.Name)
				seen[p.Name] = true
			}

			off := c.ApplyTodayRandom()
			assert.True(t, off.ActiveFilter.IsNone())
			assert.Equal(t, base.Names(), off.Displayed.Names())
		})
	}
}

func TestApplyTodayRandom_RedrawsOnEachActivation(t *testing.T) {
	base := make(models.ResultSet, 0, 40)
	for i := 0; i < 40; i++ {
		base = append(base, models.Place{Name: fmt.Sprintf("P%d", i)})
	}
	c, _ := loadedController(t, base)

	first := c.ApplyTodayRandom().Displayed.Names()
	differs := false
	for i := 0; i < 10 && !differs; i++ {
		c.ApplyTodayRandom()
		again := c.ApplyTodayRandom().Displayed.Names()
		differs = fmt.Sprint(first) != fmt.Sprint(again)
	}
	assert.True(t, differs, "activations should draw independent samples")
}

func TestSelectionPersistsAcrossFilters(t *testing.T) {
	c, gw := loadedController(t, tenPlaces())
	store := selection.NewStore()

	tower, ok := c.Lookup("Seoul Tower")
	require.True(t, ok)
	assert.True(t, store.ToggleFor(tower))

	c.ApplyKeywordFilter("맛집")
	assert.True(t, store.Contains("Seoul Tower"))
	c.ApplyKeywordFilter("맛집")
	c.ApplyTodayRandom()
	assert.True(t, store.Contains("Seoul Tower"))
	c.ClearFilter()

	gw.On("SearchCandidates", mock.Anything, "조용한 실내 박물관", mock.Anything).
		Return(models.ResultSet{{Name: "National Museum"}}, nil).Once()
	require.NoError(t, c.SearchByQuery(context.Background(), "조용한 실내 박물관"))
	assert.True(t, store.Contains("Seoul Tower"))
}

func TestSearchByQuery(t *testing.T) {
	base := tenPlaces()
	results := models.ResultSet{{Name: "National Museum of Korea", Type: "관광지"}}

	tests := []struct {
		name          string
		query         string
		filter        stubFilter
		setupMock     func(*MockGateway)
		expectedErr   func(error) bool
		expectedNames []string
		expectedQuery string
	}{
		{
			name:  "Success",
			query: "조용한 실내 박물관",
			setupMock: func(gw *MockGateway) {
				gw.On("SearchCandidates", mock.Anything, "조용한 실내 박물관", base).Return(results, nil).Once()
			},
			expectedNames: []string{"National Museum of Korea"},
			expectedQuery: "",
		},
		{
			name:  "Absent results become empty",
			query: "nothing matches",
			setupMock: func(gw *MockGateway) {
				gw.On("SearchCandidates", mock.Anything, "nothing matches", base).Return(nil, nil).Once()
			},
			expectedNames: []string{},
			expectedQuery: "",
		},
		{
			name:  "Server error keeps displayed list",
			query: "rooftop bars",
			setupMock: func(gw *MockGateway) {
				gw.On("SearchCandidates", mock.Anything, "rooftop bars", base).
					Return(nil, &models.ServerError{Message: "추천 결과가 없습니다"}).Once()
			},
			expectedErr:   func(err error) bool { _, ok := models.IsServerError(err); return ok },
			expectedNames: base.Names(),
			expectedQuery: "rooftop bars",
		},
		{
			name:  "Transport error keeps displayed list",
			query: "night market",
			setupMock: func(gw *MockGateway) {
				gw.On("SearchCandidates", mock.Anything, "night market", base).
					Return(nil, &models.TransportError{Op: "search", Err: context.DeadlineExceeded}).Once()
			},
			expectedErr:   models.IsTransportError,
			expectedNames: base.Names(),
			expectedQuery: "night market",
		},
		{
			name:          "Abusive-only query short-circuits",
			query:         "badword",
			filter:        stubFilter{"badword": true},
			setupMock:     func(*MockGateway) {},
			expectedErr:   models.IsValidationError,
			expectedNames: base.Names(),
			expectedQuery: "",
		},
		{
			name:          "Blank query short-circuits",
			query:         "   ",
			setupMock:     func(*MockGateway) {},
			expectedErr:   models.IsValidationError,
			expectedNames: base.Names(),
			expectedQuery: "",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gw := new(MockGateway)
			gw.On("ListCandidates", mock.Anything, (*time.Time)(nil), *seoul).Return(base, nil).Once()
			c := newTestController(gw, tc.filter)
			require.NoError(t, c.InitialLoad(context.Background(), seoul, nil))
			tc.setupMock(gw)
			c.SetQuery(tc.query)

			err := c.SearchByQuery(context.Background(), tc.query)

			if tc.expectedErr != nil {
				assert.True(t, tc.expectedErr(err), "unexpected error %v", err)
			} else {
				assert.NoError(t, err)
			}
			view := c.View()
			assert.False(t, view.Loading)
			assert.Equal(t, tc.expectedNames, view.Displayed.Names())
			assert.Equal(t, tc.expectedQuery, view.Query)
			assert.Equal(t, base, c.Base())
			gw.AssertExpectations(t)
		})
	}
}

func TestSearchByQuery_AbusiveNeverCallsGateway(t *testing.T) {
	c, gw := loadedController(t, tenPlaces())
	c.filter = stubFilter{"욕설": true}
	c.ApplyKeywordFilter("쇼핑")
	before := c.View()

	err := c.SearchByQuery(context.Background(), "욕설")

	assert.ErrorIs(t, err, models.ErrAbusiveQuery)
	gw.AssertNotCalled(t, "SearchCandidates", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, before.Displayed, c.View().Displayed)
	assert.Equal(t, "", c.Query())
}

func TestSearchByQuery_FilterStateIsKept(t *testing.T) {
	base := tenPlaces()
	c, gw := loadedController(t, base)
	c.ApplyKeywordFilter("관광지")

	gw.On("SearchCandidates", mock.Anything, "shopping streets", base).
		Return(models.ResultSet{{Name: "Myeongdong"}}, nil).Once()
	require.NoError(t, c.SearchByQuery(context.Background(), "shopping streets"))

	view := c.View()
	assert.True(t, view.Searched)
	assert.True(t, view.ActiveFilter.Equal(models.KeywordFilter("관광지")))

	// toggling the still-active keyword works against the base list
	view = c.ApplyKeywordFilter("관광지")
	assert.True(t, view.ActiveFilter.IsNone())
	assert.Equal(t, base.Names(), view.Displayed.Names())
	assert.False(t, view.Searched)
}

func TestSearchByQuery_ClearsDisplayedWhileInFlight(t *testing.T) {
	c, gw := loadedController(t, tenPlaces())

	release := make(chan struct{})
	started := make(chan struct{})
	gw.On("SearchCandidates", mock.Anything, "temples", mock.Anything).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(models.ResultSet{{Name: "Jogyesa"}}, nil).Once()

	done := make(chan error, 1)
	go func() { done <- c.SearchByQuery(context.Background(), "temples") }()

	<-started
	inFlight := c.View()
	assert.True(t, inFlight.Loading)
	assert.Empty(t, inFlight.Displayed)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, []string{"Jogyesa"}, c.View().Displayed.Names())
	assert.False(t, c.Loading())
}

func TestSearchByQuery_StaleCompletionIsDiscarded(t *testing.T) {
	c, gw := loadedController(t, tenPlaces())

	release := make(chan struct{})
	started := make(chan struct{})
	gw.On("SearchCandidates", mock.Anything, "slow", mock.Anything).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(models.ResultSet{{Name: "Late"}}, nil).Once()

	done := make(chan error, 1)
	go func() { done <- c.SearchByQuery(context.Background(), "slow") }()
	<-started

	// the user moves on before the search answers
	view := c.ApplyKeywordFilter("맛집")
	close(release)
	require.NoError(t, <-done)

	after := c.View()
	assert.Equal(t, view.Displayed.Names(), after.Displayed.Names())
	assert.False(t, after.Searched)
	assert.False(t, after.Loading)
}

func TestCloseDiscardsLateCompletions(t *testing.T) {
	gw := new(MockGateway)
	release := make(chan struct{})
	started := make(chan struct{})
	gw.On("ListCandidates", mock.Anything, (*time.Time)(nil), *seoul).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(tenPlaces(), nil).Once()
	c := newTestController(gw, stubFilter{})

	done := make(chan error, 1)
	go func() { done <- c.InitialLoad(context.Background(), seoul, nil) }()
	<-started
	c.Close()
	close(release)

	assert.ErrorIs(t, <-done, models.ErrClosed)
	assert.Empty(t, c.View().Displayed)
	assert.ErrorIs(t, c.InitialLoad(context.Background(), seoul, nil), models.ErrClosed)
}

func TestEmptyBaseResilience(t *testing.T) {
	c, gw := loadedController(t, models.ResultSet{})

	assert.Empty(t, c.ApplyKeywordFilter("관광지").Displayed)
	assert.Empty(t, c.ApplyKeywordFilter("관광지").Displayed)
	assert.Empty(t, c.ApplyTodayRandom().Displayed)
	assert.Empty(t, c.ApplyTodayRandom().Displayed)

	gw.On("SearchCandidates", mock.Anything, "anything", models.ResultSet{}).Return(models.ResultSet{}, nil).Once()
	require.NoError(t, c.SearchByQuery(context.Background(), "anything"))
	assert.Empty(t, c.View().Displayed)
}

func TestOperationsBeforeLoadDoNotPanic(t *testing.T) {
	gw := new(MockGateway)
	c := newTestController(gw, stubFilter{})

	assert.NotPanics(t, func() {
		assert.Empty(t, c.ApplyKeywordFilter("맛집").Displayed)
		assert.Empty(t, c.ApplyTodayRandom().Displayed)
		assert.Empty(t, c.ClearFilter().Displayed)
	})
}

func TestInitialLoad_OverridesPendingSearch(t *testing.T) {
	c, gw := loadedController(t, tenPlaces())
	busan := models.Location{Latitude: 35.1796, Longitude: 129.0756, Label: "Busan"}
	busanPlaces := models.ResultSet{{Name: "Haeundae", Type: "관광지"}, {Name: "Jagalchi", Type: "맛집"}}

	release := make(chan struct{})
	started := make(chan struct{})
	gw.On("SearchCandidates", mock.Anything, "night view", mock.Anything).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(models.ResultSet{{Name: "Late"}}, nil).Once()
	gw.On("ListCandidates", mock.Anything, (*time.Time)(nil), busan).Return(busanPlaces, nil).Once()

	done := make(chan error, 1)
	go func() { done <- c.SearchByQuery(context.Background(), "night view") }()
	<-started

	require.NoError(t, c.InitialLoad(context.Background(), &busan, nil))
	close(release)
	require.NoError(t, <-done)

	view := c.View()
	assert.Equal(t, busanPlaces.Names(), view.Displayed.Names())
	assert.Equal(t, 2, view.BaseCount)
	assert.False(t, view.Searched)
	assert.False(t, view.Loading)
	gw.AssertExpectations(t)
}

func TestInitialLoad_OlderLoadIsDropped(t *testing.T) {
	gw := new(MockGateway)
	busan := models.Location{Latitude: 35.1796, Longitude: 129.0756, Label: "Busan"}
	busanPlaces := models.ResultSet{{Name: "Haeundae"}}

	release := make(chan struct{})
	started := make(chan struct{})
	gw.On("ListCandidates", mock.Anything, (*time.Time)(nil), *seoul).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(tenPlaces(), nil).Once()
	gw.On("ListCandidates", mock.Anything, (*time.Time)(nil), busan).Return(busanPlaces, nil).Once()
	c := newTestController(gw, stubFilter{})

	done := make(chan error, 1)
	go func() { done <- c.InitialLoad(context.Background(), seoul, nil) }()
	<-started

	require.NoError(t, c.InitialLoad(context.Background(), &busan, nil))
	assert.True(t, c.Loading(), "the Seoul load is still pending")

	close(release)
	require.NoError(t, <-done)

	view := c.View()
	assert.Equal(t, []string{"Haeundae"}, view.Displayed.Names())
	assert.Equal(t, 1, view.BaseCount)
	assert.Equal(t, "Busan", view.Location.Label)
	assert.False(t, view.Loading)
	gw.AssertExpectations(t)
}

func TestSearchByQuery_OverlappingFailureRestoresSettledList(t *testing.T) {
	c, gw := loadedController(t, tenPlaces())
	before := c.View().Displayed.Names()

	release := make(chan struct{})
	started := make(chan struct{})
	gw.On("SearchCandidates", mock.Anything, "first", mock.Anything).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(models.ResultSet{{Name: "Late"}}, nil).Once()
	gw.On("SearchCandidates", mock.Anything, "second", mock.Anything).
		Return(nil, &models.TransportError{Op: "search", Err: context.DeadlineExceeded}).Once()

	done := make(chan error, 1)
	go func() { done <- c.SearchByQuery(context.Background(), "first") }()
	<-started

	err := c.SearchByQuery(context.Background(), "second")
	require.True(t, models.IsTransportError(err))
	assert.Equal(t, before, c.View().Displayed.Names())

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, before, c.View().Displayed.Names())
	assert.False(t, c.Loading())
}
