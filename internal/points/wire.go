package points

import (
	"encoding/xml"
	"strconv"
	"strings"

	"github.com/m3rciful/pointshop/internal/domain"
)

// Directory field names used by the provider.
const (
	fieldEmail     = "EMAIL"
	fieldFirstName = "FIRST_NAME"
	fieldLastName  = "LAST_NAME"
)

type userListResponse struct {
	XMLName  xml.Name      `xml:"response"`
	Profiles []userProfile `xml:"userProfile"`
}

type userProfile struct {
	UserID string         `xml:"userId"`
	Fields []profileField `xml:"fields>field"`
}

type profileField struct {
	Name   string   `xml:"name"`
	Values []string `xml:"value"`
}

func (p userProfile) field(name string) string {
	for _, f := range p.Fields {
		if strings.EqualFold(f.Name, name) && len(f.Values) > 0 {
			return strings.TrimSpace(f.Values[0])
		}
	}
	return ""
}

func (p userProfile) identity() (domain.Identity, bool) {
	id := strings.TrimSpace(p.UserID)
	email := strings.ToLower(p.field(fieldEmail))
	if id == "" || email == "" {
		return domain.Identity{}, false
	}
	return domain.Identity{
		UserID:    id,
		Email:     email,
		FirstName: p.field(fieldFirstName),
		LastName:  p.field(fieldLastName),
	}, true
}

type pointsResponse struct {
	XMLName xml.Name     `xml:"response"`
	Infos   []pointsInfo `xml:"userPointsInfo"`
}

type pointsInfo struct {
	UserID string  `xml:"userId"`
	Points *string `xml:"points"`
}

type withdrawRequest struct {
	XMLName xml.Name `xml:"withdrawGamificationPoints"`
	UserID  string   `xml:"userId"`
	Amount  int64    `xml:"amount"`
	Reason  string   `xml:"reason"`
}

// Balance is a point balance. Known is false when the provider omitted the
// value or sent something unparseable; Points is meaningless then.
type Balance struct {
	Points int64
	Known  bool
}

func balanceFor(resp pointsResponse, userID string) Balance {
	for _, info := range resp.Infos {
		if strings.TrimSpace(info.UserID) != userID || info.Points == nil {
			continue
		}
		n, err := strconv.ParseInt(strings.TrimSpace(*info.Points), 10, 64)
		if err != nil {
			return Balance{}
		}
		return Balance{Points: n, Known: true}
	}
	return Balance{}
}
