package constants

import "strings"

// Gender is the closed two-value enum printed on a KTP.
type Gender string

const (
	GenderMale   Gender = "LAKI-LAKI"
	GenderFemale Gender = "PEREMPUAN"
)

var allGenders = []Gender{GenderMale, GenderFemale}

// CanonicalizeGender maps common vision-model spellings onto the two
// canonical labels. Returns false when the value is not recognizable.
func CanonicalizeGender(input string) (Gender, bool) {
	normalized := strings.ToUpper(strings.TrimSpace(input))

	synonyms := map[string]Gender{
		"LAKI LAKI": GenderMale,
		"LAKILAKI":  GenderMale,
		"PRIA":      GenderMale,
		"MALE":      GenderMale,
		"WANITA":    GenderFemale,
		"FEMALE":    GenderFemale,
	}
	if g, ok := synonyms[normalized]; ok {
		return g, true
	}
	for _, g := range allGenders {
		if normalized == string(g) {
			return g, true
		}
	}
	return "", false
}

// MaritalStatus is the closed set printed on a KTP.
type MaritalStatus string

const (
	MaritalSingle   MaritalStatus = "BELUM KAWIN"
	MaritalMarried  MaritalStatus = "KAWIN"
	MaritalDivorced MaritalStatus = "CERAI HIDUP"
	MaritalWidowed  MaritalStatus = "CERAI MATI"
)

var allMaritalStatuses = []MaritalStatus{
	MaritalSingle,
	MaritalMarried,
	MaritalDivorced,
	MaritalWidowed,
}

// IsKnownMaritalStatus reports whether the value matches a canonical label.
func IsKnownMaritalStatus(input string) bool {
	normalized := strings.ToUpper(strings.TrimSpace(input))
	for _, m := range allMaritalStatuses {
		if normalized == string(m) {
			return true
		}
	}
	return false
}

// Religions officially recognized on Indonesian ID cards.
var Religions = []string{
	"ISLAM", "KRISTEN", "KATOLIK", "HINDU", "BUDDHA", "KONGHUCU",
}

// IsKnownReligion reports whether the value matches a recognized religion.
func IsKnownReligion(input string) bool {
	normalized := strings.ToUpper(strings.TrimSpace(input))
	for _, r := range Religions {
		if normalized == r {
			return true
		}
	}
	return false
}

// Nationalities accepted on the kewarganegaraan field.
var Nationalities = []string{"WNI", "WNA"}

// IsKnownNationality reports whether the value matches WNI/WNA.
func IsKnownNationality(input string) bool {
	normalized := strings.ToUpper(strings.TrimSpace(input))
	for _, n := range Nationalities {
		if normalized == n {
			return true
		}
	}
	return false
}
