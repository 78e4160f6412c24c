package planner

import (
	"errors"

	"github.com/FACorreiaa/loci-planner/internal/app/domain/recommend"
	"github.com/FACorreiaa/loci-planner/internal/app/models"
)

// User-facing messages.
const (
	MsgAbusiveQuery = "부적절한 단어만 입력되어 요청을 처리할 수 없습니다."
	MsgEmptyQuery   = "검색어를 입력해 주세요."
	MsgSearchFailed = "추천 요청 중 오류가 발생했습니다."
	MsgLoadFailed   = "장소 추천 리스트를 불러오지 못했습니다. 다시 시도해 주세요."
	MsgNoLocation   = "출발 위치를 먼저 선택해 주세요."
	MsgBadContext   = "여행 정보가 올바르지 않습니다."
	MsgRateLimited  = "요청이 너무 많습니다. 잠시 후 다시 시도해 주세요."
	MsgUnknownPlace = "선택한 장소를 찾을 수 없습니다."
	MsgSessionEnded = "세션이 만료되었습니다. 페이지를 새로고침해 주세요."
)

type AlertKind string

const (
	AlertError   AlertKind = "error"
	AlertWarning AlertKind = "warning"
)

// Alert is a one-shot notification rendered above the list.
type Alert struct {
	Kind    AlertKind
	Message string
}

// alertFor maps an operation error to what the user sees. Backend messages
// are shown verbatim; transport failures get the generic message for the
// operation.
func alertFor(err error, generic string) *Alert {
	if err == nil {
		return nil
	}
	if se, ok := models.IsServerError(err); ok {
		return &Alert{Kind: AlertError, Message: se.Message}
	}
	switch {
	case errors.Is(err, models.ErrAbusiveQuery):
		return &Alert{Kind: AlertWarning, Message: MsgAbusiveQuery}
	case errors.Is(err, models.ErrEmptyQuery):
		return &Alert{Kind: AlertWarning, Message: MsgEmptyQuery}
	case errors.Is(err, models.ErrNoStartingLocation):
		return &Alert{Kind: AlertWarning, Message: MsgNoLocation}
	case errors.Is(err, models.ErrNotFound):
		return &Alert{Kind: AlertWarning, Message: MsgUnknownPlace}
	case errors.Is(err, models.ErrClosed):
		return &Alert{Kind: AlertError, Message: MsgSessionEnded}
	}
	return &Alert{Kind: AlertError, Message: generic}
}

// PageData is everything the planner step renders.
type PageData struct {
	Trip      models.TripContext
	View      recommend.View
	Keywords  []string
	Selected  []models.Place
	Alert     *Alert
	PageSize  int
	selectedM map[string]struct{}
}

func newPageData(s *Session, keywords []string, pageSize int, alert *Alert) PageData {
	selected := s.Selection.List()
	m := make(map[string]struct{}, len(selected))
	for _, p := range selected {
		m[p.Name] = struct{}{}
	}
	return PageData{
		Trip:      s.Trip.Snapshot(),
		View:      s.Controller.View(),
		Keywords:  keywords,
		Selected:  selected,
		Alert:     alert,
		PageSize:  pageSize,
		selectedM: m,
	}
}

// IsSelected reports whether the place named name is in the selection.
func (d PageData) IsSelected(name string) bool {
	_, ok := d.selectedM[name]
	return ok
}
