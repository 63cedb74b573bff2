package validator

import (
	"fmt"
	"strconv"
	"time"

	"ktp-verify/constants"
)

var digitsOnly = func(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// nikBirthInfo is what the DDMMYY segment of a NIK encodes.
type nikBirthInfo struct {
	Day    int
	Month  int
	Year   int // four digits
	Female bool
}

// decodeNIKBirth parses digits 7-12 of a structurally well-formed NIK.
// The day is offset by 40 for women; two-digit years pivot on the current
// year (26 in 2026 reads as 2026, 27 as 1927).
func decodeNIKBirth(segment string, now time.Time) (nikBirthInfo, error) {
	if len(segment) != constants.NIKBirthDateDigits || !digitsOnly(segment) {
		return nikBirthInfo{}, fmt.Errorf("birth segment %q is not 6 digits", segment)
	}
	day, _ := strconv.Atoi(segment[0:2])
	month, _ := strconv.Atoi(segment[2:4])
	yy, _ := strconv.Atoi(segment[4:6])

	info := nikBirthInfo{Month: month}
	if day > constants.NIKFemaleDayOffset {
		info.Female = true
		day -= constants.NIKFemaleDayOffset
	}
	info.Day = day

	pivot := (now.Year() - 1900) % 100
	if yy <= pivot {
		info.Year = 2000 + yy
	} else {
		info.Year = 1900 + yy
	}

	if day < 1 || day > 31 || month < 1 || month > 12 {
		return info, fmt.Errorf("birth segment %q out of range", segment)
	}
	born := time.Date(info.Year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if born.Day() != day || born.Month() != time.Month(month) {
		return info, fmt.Errorf("birth segment %q is not a calendar date", segment)
	}
	if born.After(now) {
		return info, fmt.Errorf("birth segment %q is in the future", segment)
	}
	return info, nil
}

// validateNIK checks the 16-digit identity number. Format problems are
// always hard failures; the structural checks on the embedded region and
// birth-date segments only run under strict mode since the authoritative
// regional encoding table is an external standard.
func (v *Validator) validateNIK(nik string, now time.Time) []Violation {
	if nik == "" {
		return []Violation{hard("NIK tidak boleh kosong")}
	}
	if len(nik) != constants.NIKLength || !digitsOnly(nik) {
		return []Violation{hard("NIK harus 16 digit angka")}
	}
	if !v.cfg.StrictNIK {
		return nil
	}

	var violations []Violation

	region := nik[:constants.NIKRegionDigits]
	if region[0:2] == "00" || region[2:4] == "00" || region[4:6] == "00" {
		violations = append(violations, hard("Kode wilayah NIK tidak valid: "+region))
	}

	birth := nik[constants.NIKBirthDateOffset : constants.NIKBirthDateOffset+constants.NIKBirthDateDigits]
	if _, err := decodeNIKBirth(birth, now); err != nil {
		violations = append(violations, hard("Tanggal lahir dalam NIK tidak valid: "+birth))
	}

	if nik[constants.NIKSequenceOffset:] == "0000" {
		violations = append(violations, hard("Nomor urut NIK tidak boleh 0000"))
	}
	return violations
}

// crossCheckNIK compares the NIK embedded birth date and gender marker with
// the printed fields. Mismatches are soft: extraction noise on either side
// should not reject a structurally sound card.
func (v *Validator) crossCheckNIK(nik, birthDate, gender string, now time.Time) []Violation {
	if len(nik) != constants.NIKLength || !digitsOnly(nik) {
		return nil
	}
	info, err := decodeNIKBirth(nik[constants.NIKBirthDateOffset:constants.NIKBirthDateOffset+constants.NIKBirthDateDigits], now)
	if err != nil {
		return nil
	}

	var violations []Violation

	if gender != "" {
		if g, ok := constants.CanonicalizeGender(gender); ok {
			if (g == constants.GenderFemale) != info.Female {
				violations = append(violations, soft("Jenis kelamin tidak sesuai dengan NIK"))
			}
		}
	}

	if birthDate != "" {
		if printed, err := parseBirthDate(birthDate); err == nil {
			if printed.Day() != info.Day || int(printed.Month()) != info.Month || printed.Year() != info.Year {
				violations = append(violations, soft("Tanggal lahir tidak sesuai dengan NIK"))
			}
		}
	}
	return violations
}
