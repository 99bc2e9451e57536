package factorydata

import (
	"math"

	"github.com/nerrad567/factory-data-core/internal/apperr"
	"github.com/nerrad567/factory-data-core/internal/querybuilder"
)

// listDelimiter separates values in list-valued query parameters.
const listDelimiter = ","

// SearchQuery is a search as received: every value is the raw request
// string. List-valued parameters are comma separated.
type SearchQuery struct {
	InputType   string
	Input       string
	State       string
	LikeFields  string
	LikeValues  string
	RangeFields string
	RangeValues string
	SortBy      string
	OrderBy     string
	Page        string
	Size        string
}

// ParseSearch validates q and turns it into a Search. Identifier inputs are
// normalised by the rules of their input type.
func (v *Validator) ParseSearch(q SearchQuery) (Search, error) {
	var s Search

	page, err := ValidatePage(q.Page)
	if err != nil {
		return Search{}, err
	}
	size, err := v.ValidateSize(q.Size)
	if err != nil {
		return Search{}, err
	}
	if _, ok := pageOffset(page, size); !ok {
		return Search{}, apperr.ErrInvalidPage.Withf("page %d is out of range for size %d", page, size)
	}
	s.Page, s.Size = page, size

	inputType, err := ValidateInputType(q.InputType)
	if err != nil {
		return Search{}, err
	}
	inputs, err := v.ValidateInputs(inputType, querybuilder.SplitList(q.Input, listDelimiter))
	if err != nil {
		return Search{}, err
	}
	s.InputType, s.Inputs = inputType, inputs

	for _, raw := range querybuilder.SplitList(q.State, listDelimiter) {
		st, ok := ParseState(raw)
		if !ok {
			return Search{}, apperr.ErrInvalidState.Withf("state %q is not recognised", raw)
		}
		s.States = append(s.States, st)
	}

	s.LikeFields = querybuilder.SplitList(q.LikeFields, listDelimiter)
	s.LikeValues = querybuilder.SplitList(q.LikeValues, listDelimiter)
	s.RangeFields = querybuilder.SplitList(q.RangeFields, listDelimiter)
	s.RangeValues = querybuilder.SplitList(q.RangeValues, listDelimiter)
	if err := ValidateFilters(&s); err != nil {
		return Search{}, err
	}

	s.SortBy, s.Order, err = ValidateSort(q.SortBy, q.OrderBy)
	if err != nil {
		return Search{}, err
	}
	return s, nil
}

// pageOffset returns the row offset of a 1-based page. ok is false when
// the offset does not fit in an int64.
func pageOffset(page, size int) (offset int64, ok bool) {
	if page <= 1 || size <= 0 {
		return 0, true
	}
	if int64(page-1) > math.MaxInt64/int64(size) {
		return 0, false
	}
	return int64(page-1) * int64(size), true
}
