package schedule

import (
	"strings"

	"github.com/google/uuid"

	"github.com/lasercare/clinic/internal/domain/admin"
	"github.com/lasercare/clinic/pkg/textnorm"
)

// rosterNamespace seeds the deterministic ids of imported roster lines.
var rosterNamespace = uuid.MustParse("6f1c7a52-3f0e-4c1b-9a57-1d0c2f8e4b90")

// rosterKey derives a stable id from what identifies one appointment, so
// re-uploading the same sheet yields the same ids and a repeated line
// collapses onto the first.
func rosterKey(row RosterRow) uuid.UUID {
	name := strings.Join([]string{
		row.Date.Format("2006-01-02"),
		row.Start,
		textnorm.Name(row.Nom),
		textnorm.Name(row.Prenom),
		textnorm.Name(row.Doctor),
	}, "|")
	return uuid.NewSHA1(rosterNamespace, []byte(name))
}

// MatchDoctor resolves a roster doctor label against users. Matching is
// tried in passes: nom, then "prenom nom", then "dr nom" or "dr. nom".
// Within a pass the first user in list order wins.
func MatchDoctor(label string, users []*admin.User) *admin.User {
	key := textnorm.Name(label)
	if key == "" {
		return nil
	}
	passes := []func(u *admin.User) bool{
		func(u *admin.User) bool { return textnorm.Name(u.Nom) == key },
		func(u *admin.User) bool { return textnorm.Name(u.Prenom+" "+u.Nom) == key },
		func(u *admin.User) bool {
			nom := textnorm.Name(u.Nom)
			return key == "dr "+nom || key == "dr. "+nom
		},
	}
	for _, match := range passes {
		for _, u := range users {
			if match(u) {
				return u
			}
		}
	}
	return nil
}
