package user

import (
	"net/http"
	"strconv"

	"github.com/frahmantamala/equipment-approvals/internal"
	"github.com/frahmantamala/equipment-approvals/internal/transport"
)

type TeamResponse struct {
	Users  []*User `json:"users"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
}

// ParseTeamFilter reads search, company_id, area_id, limit and offset.
func ParseTeamFilter(r *http.Request) (TeamFilter, error) {
	q := r.URL.Query()
	f := TeamFilter{
		Search: q.Get("search"),
		Limit:  transport.QueryInt(r, "limit", 50, 1, 200),
		Offset: transport.QueryInt(r, "offset", 0, 0, 1<<30),
	}

	for key, dst := range map[string]**int64{"company_id": &f.CompanyID, "area_id": &f.AreaID} {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return TeamFilter{}, internal.NewValidationFieldError(key, key+" must be a positive integer", internal.ErrCodeValidationFailed)
		}
		*dst = &id
	}
	return f, nil
}
