package importer

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prospectkeeper/internal/model"
)

// columnMap holds the column index of each contact field, -1 when the source
// file does not carry it.
type columnMap struct {
	name         int
	email        int
	title        int
	organization int
	website      int
	profile      int
	salesforceID int
}

// headerAliases maps the header spellings list providers actually use onto
// contact fields. Headers are normalized to lowercase with single spaces
// before lookup.
var headerAliases = map[string]string{
	"name":          "name",
	"full name":     "name",
	"contact name":  "name",
	"contact":       "name",
	"email":         "email",
	"email address": "email",
	"e mail":        "email",
	"work email":    "email",
	"title":         "title",
	"job title":     "title",
	"position":      "title",
	"role":          "title",
	"organization":  "organization",
	"organisation":  "organization",
	"company":       "organization",
	"company name":  "organization",
	"account":       "organization",
	"account name":  "organization",
	"website":       "website",
	"company website": "website",
	"org website":     "website",
	"domain":          "website",
	"profile":         "profile",
	"profile url":     "profile",
	"linkedin":        "profile",
	"linkedin url":    "profile",
	"salesforce id":   "salesforce_id",
	"sfdc id":         "salesforce_id",
	"crm id":          "salesforce_id",
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.NewReplacer("_", " ", "-", " ").Replace(h)
	return strings.Join(strings.Fields(h), " ")
}

// mapColumns resolves a header row to a columnMap. Name and email columns are
// mandatory; everything else degrades to empty fields.
func mapColumns(header []string) (columnMap, error) {
	cm := columnMap{name: -1, email: -1, title: -1, organization: -1, website: -1, profile: -1, salesforceID: -1}

	for i, h := range header {
		switch headerAliases[normalizeHeader(h)] {
		case "name":
			cm.name = i
		case "email":
			cm.email = i
		case "title":
			cm.title = i
		case "organization":
			cm.organization = i
		case "website":
			cm.website = i
		case "profile":
			cm.profile = i
		case "salesforce_id":
			cm.salesforceID = i
		}
	}

	if cm.name < 0 {
		return cm, eris.Errorf("importer: no name column in header %v", header)
	}
	if cm.email < 0 {
		return cm, eris.Errorf("importer: no email column in header %v", header)
	}
	return cm, nil
}

func (cm columnMap) field(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// contact builds a Contact from one data row. The ID is derived from the
// email so re-importing the same list is idempotent.
func (cm columnMap) contact(row []string) (model.Contact, error) {
	name := cm.field(row, cm.name)
	email := cm.field(row, cm.email)

	if name == "" {
		return model.Contact{}, eris.New("missing name")
	}
	if !validEmail(email) {
		return model.Contact{}, eris.Errorf("invalid email %q", email)
	}

	c := model.NewContact(name, email, cm.field(row, cm.title), cm.field(row, cm.organization))
	c.ID = ContactID(email)
	c.OrgWebsite = cm.field(row, cm.website)
	c.ProfileURL = cm.field(row, cm.profile)
	c.SalesforceID = cm.field(row, cm.salesforceID)
	return c, nil
}

func validEmail(email string) bool {
	at := strings.Index(email, "@")
	if at <= 0 || at != strings.LastIndex(email, "@") {
		return false
	}
	domain := email[at+1:]
	return strings.Contains(domain, ".") && !strings.ContainsAny(email, " \t")
}
