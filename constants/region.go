package constants

import "strings"

// Provinces holds the 38 province names as printed on current KTPs.
var Provinces = []string{
	"ACEH", "SUMATERA UTARA", "SUMATERA BARAT", "RIAU", "JAMBI",
	"SUMATERA SELATAN", "BENGKULU", "LAMPUNG", "KEPULAUAN BANGKA BELITUNG",
	"KEPULAUAN RIAU", "DKI JAKARTA", "JAWA BARAT", "JAWA TENGAH",
	"DI YOGYAKARTA", "JAWA TIMUR", "BANTEN", "BALI", "NUSA TENGGARA BARAT",
	"NUSA TENGGARA TIMUR", "KALIMANTAN BARAT", "KALIMANTAN TENGAH",
	"KALIMANTAN SELATAN", "KALIMANTAN TIMUR", "KALIMANTAN UTARA",
	"SULAWESI UTARA", "SULAWESI TENGAH", "SULAWESI SELATAN",
	"SULAWESI TENGGARA", "GORONTALO", "SULAWESI BARAT", "MALUKU",
	"MALUKU UTARA", "PAPUA", "PAPUA BARAT", "PAPUA SELATAN",
	"PAPUA TENGAH", "PAPUA PEGUNUNGAN", "PAPUA BARAT DAYA",
}

// IsKnownProvince matches the name against the province table, accepting
// partial matches since cards abbreviate (e.g. "JAKARTA" vs "DKI JAKARTA").
func IsKnownProvince(input string) bool {
	normalized := strings.ToUpper(strings.TrimSpace(input))
	if normalized == "" {
		return false
	}
	for _, p := range Provinces {
		if normalized == p || strings.Contains(p, normalized) || strings.Contains(normalized, p) {
			return true
		}
	}
	return false
}

// NIK segment layout. The 16-digit number encodes, in order: province (2),
// regency (2), district (2), birth date DDMMYY (6, day offset by 40 for
// women), and a 4-digit sequence number.
const (
	NIKLength          = 16
	NIKRegionDigits    = 6
	NIKBirthDateOffset = 6
	NIKBirthDateDigits = 6
	NIKSequenceOffset  = 12
	NIKFemaleDayOffset = 40
)
