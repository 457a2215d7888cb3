package catalog

import "strings"

var placeholderMarkers = []string{"unsplash.com", "placeholder", "/default/", "no-image"}

// IsPlaceholder reports whether image is empty or one of the stock images
// the flattener assigns. Matching is case-insensitive.
func IsPlaceholder(image string) bool {
	s := strings.ToLower(strings.TrimSpace(image))
	if s == "" {
		return true
	}
	for _, m := range placeholderMarkers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// PreservationMap maps record ids to admin-assigned images.
type PreservationMap map[ID]string

// BuildPreservationMap collects the non-placeholder images of the existing
// catalog. It must be built before the new catalog is written.
func BuildPreservationMap(existing []Record) PreservationMap {
	m := make(PreservationMap)
	for _, r := range existing {
		if r.ID == "" || IsPlaceholder(r.Image) {
			continue
		}
		if _, ok := m[r.ID]; !ok {
			m[r.ID] = strings.TrimSpace(r.Image)
		}
	}
	return m
}

// ApplyPreservation overwrites the image of every record present in m and
// returns how many records were touched. Records absent from m keep the
// image the flattener assigned.
func ApplyPreservation(records []Record, m PreservationMap) int {
	if len(m) == 0 {
		return 0
	}
	n := 0
	for i := range records {
		img, ok := m[records[i].ID]
		if !ok {
			continue
		}
		records[i].Image = img
		n++
	}
	return n
}
