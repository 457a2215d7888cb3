package catalog

import (
	"sort"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Filter selects catalog records for the storefront.
type Filter struct {
	Category          string `json:"category,omitempty"`
	Group             string `json:"group,omitempty"`
	Search            string `json:"search,omitempty"`
	IncludeOutOfStock bool   `json:"includeOutOfStock,omitempty"`
	Limit             int    `json:"limit,omitempty"`
	Offset            int    `json:"offset,omitempty"`
}

// Normalized returns f with trimmed fields and "Todos" folded into no
// category, so equivalent filters share a cache key.
func (f Filter) Normalized() Filter {
	f.Category = strings.TrimSpace(f.Category)
	if strings.EqualFold(f.Category, AllCategories) {
		f.Category = ""
	}
	f.Group = strings.TrimSpace(f.Group)
	f.Search = strings.TrimSpace(f.Search)
	if f.Limit < 0 {
		f.Limit = 0
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// Page is one page of query results.
type Page struct {
	Items  []Record `json:"items"`
	Total  int      `json:"total"`
	Limit  int      `json:"limit"`
	Offset int      `json:"offset"`
}

// Query filters records and returns the requested window in catalog order.
func Query(records []Record, f Filter) Page {
	f = f.Normalized()
	needle := foldText(f.Search)

	matched := make([]Record, 0, len(records))
	for _, r := range records {
		if !f.IncludeOutOfStock && !r.InStock {
			continue
		}
		if f.Category != "" && !strings.EqualFold(r.Category, f.Category) {
			continue
		}
		if f.Group != "" && !matchesGroup(r, f.Group) {
			continue
		}
		if needle != "" && !matchesSearch(r, needle) {
			continue
		}
		matched = append(matched, r)
	}

	page := Page{Total: len(matched), Limit: f.Limit, Offset: f.Offset}
	start := f.Offset
	if start > len(matched) {
		start = len(matched)
	}
	end := len(matched)
	if f.Limit > 0 && start+f.Limit < end {
		end = start + f.Limit
	}
	page.Items = matched[start:end]
	return page
}

// Find returns the record with the given id.
func Find(records []Record, id ID) (Record, bool) {
	for _, r := range records {
		if r.ID == id {
			return r, true
		}
	}
	return Record{}, false
}

// matchesGroup accepts the composite "secaoId-grupoId" form or a plain grupoId.
func matchesGroup(r Record, group string) bool {
	vd := r.VarejoFacil
	if strings.Contains(group, "-") {
		return group == groupKey(vd.SecaoID, vd.GrupoID)
	}
	return group == strconv.FormatInt(vd.GrupoID, 10)
}

func matchesSearch(r Record, needle string) bool {
	for _, field := range []string{r.Name, r.Description, r.Category, r.Brand} {
		if strings.Contains(foldText(field), needle) {
			return true
		}
	}
	return false
}

// foldText lowercases s and strips combining marks so "AÇÚCAR" matches
// "acucar".
func foldText(s string) string {
	if s == "" {
		return ""
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// GroupSummary is one group inside a section.
type GroupSummary struct {
	ID    int64  `json:"id"`
	Key   string `json:"key"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Section is one node of the storefront category tree.
type Section struct {
	ID     int64          `json:"id"`
	Name   string         `json:"name"`
	Count  int            `json:"count"`
	Groups []GroupSummary `json:"groups"`
}

// Sections builds the section tree of the in-stock records. Sections and
// groups are ordered by name using Brazilian Portuguese collation.
func Sections(records []Record) []Section {
	type sectionAcc struct {
		section Section
		groups  map[string]*GroupSummary
	}

	byName := make(map[string]*sectionAcc)
	for _, r := range records {
		if !r.InStock {
			continue
		}
		acc, ok := byName[r.Category]
		if !ok {
			acc = &sectionAcc{
				section: Section{ID: r.VarejoFacil.SecaoID, Name: r.Category},
				groups:  make(map[string]*GroupSummary),
			}
			byName[r.Category] = acc
		}
		acc.section.Count++
		if r.Group == "" {
			continue
		}
		key := groupKey(r.VarejoFacil.SecaoID, r.VarejoFacil.GrupoID)
		g, ok := acc.groups[key]
		if !ok {
			g = &GroupSummary{ID: r.VarejoFacil.GrupoID, Key: key, Name: r.Group}
			acc.groups[key] = g
		}
		g.Count++
	}

	col := collate.New(language.BrazilianPortuguese, collate.IgnoreCase)
	out := make([]Section, 0, len(byName))
	for _, acc := range byName {
		s := acc.section
		s.Groups = make([]GroupSummary, 0, len(acc.groups))
		for _, g := range acc.groups {
			s.Groups = append(s.Groups, *g)
		}
		sort.Slice(s.Groups, func(i, j int) bool {
			if c := col.CompareString(s.Groups[i].Name, s.Groups[j].Name); c != 0 {
				return c < 0
			}
			return s.Groups[i].Key < s.Groups[j].Key
		})
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := col.CompareString(out[i].Name, out[j].Name); c != 0 {
			return c < 0
		}
		return out[i].ID < out[j].ID
	})
	return out
}
