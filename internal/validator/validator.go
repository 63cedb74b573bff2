// Package validator applies Indonesian KTP business rules to an extracted
// record. It is a pure function of its input: it never errors, it only
// reports violations and an adjusted confidence score; the pipeline decides
// what a violation means for overall validity.
package validator

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"ktp-verify/constants"
	"ktp-verify/internal/entity"
)

// Config tunes validation strictness.
type Config struct {
	// StrictNIK enables structural validation of the NIK region and
	// embedded birth-date segments on top of the 16-digit format check.
	StrictNIK bool
}

// Validator validates extracted KTP records.
type Validator struct {
	cfg Config
	now func() time.Time
}

// New creates a Validator. The clock is wall time; tests swap it via WithClock.
func New(cfg Config) *Validator {
	return &Validator{cfg: cfg, now: time.Now}
}

// WithClock returns a copy using the given clock for date checks.
func (v *Validator) WithClock(now func() time.Time) *Validator {
	return &Validator{cfg: v.cfg, now: now}
}

var rtRWPattern = regexp.MustCompile(`^\d{3}/\d{3}$`)

// Validate returns every violated rule in a stable order. Hard failures are
// structural problems with the required fields; soft warnings cover the
// enumerated fields where the vision model's terminology may drift.
func (v *Validator) Validate(rec *entity.KTPRecord) []Violation {
	now := v.now()
	var violations []Violation

	violations = append(violations, v.validateNIK(rec.NIK, now)...)

	if strings.TrimSpace(rec.Name) == "" || len(strings.TrimSpace(rec.Name)) < 2 {
		violations = append(violations, hard("Nama tidak valid atau terlalu pendek"))
	}

	if rec.BirthDate != "" {
		violations = append(violations, validateBirthDate(rec.BirthDate, now)...)
	} else {
		violations = append(violations, soft("Tanggal lahir tidak terbaca"))
	}

	if rec.Gender != "" {
		if _, ok := constants.CanonicalizeGender(rec.Gender); !ok {
			violations = append(violations, hard("Jenis kelamin tidak valid: "+rec.Gender))
		}
	}

	if rec.Province != "" && !constants.IsKnownProvince(rec.Province) {
		violations = append(violations, soft("Provinsi tidak dikenali: "+rec.Province))
	}
	if rec.Religion != "" && !constants.IsKnownReligion(rec.Religion) {
		violations = append(violations, soft("Agama tidak valid: "+rec.Religion))
	}
	if rec.MaritalStatus != "" && !constants.IsKnownMaritalStatus(rec.MaritalStatus) {
		violations = append(violations, soft("Status perkawinan tidak valid: "+rec.MaritalStatus))
	}
	if rec.Nationality != "" && !constants.IsKnownNationality(rec.Nationality) {
		violations = append(violations, soft("Kewarganegaraan tidak dikenali: "+rec.Nationality))
	}
	if rec.RTRW != "" && !rtRWPattern.MatchString(rec.RTRW) {
		violations = append(violations, soft("Format RT/RW tidak valid: "+rec.RTRW))
	}

	violations = append(violations, v.crossCheckNIK(rec.NIK, rec.BirthDate, rec.Gender, now)...)

	return violations
}

// parseBirthDate parses the printed DD-MM-YYYY format, rejecting impossible
// calendar dates.
func parseBirthDate(s string) (time.Time, error) {
	t, err := time.Parse("02-01-2006", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse birth date %q: %w", s, err)
	}
	return t, nil
}

func validateBirthDate(s string, now time.Time) []Violation {
	t, err := parseBirthDate(s)
	if err != nil {
		return []Violation{hard("Format tanggal lahir salah. Gunakan DD-MM-YYYY: " + s)}
	}
	var violations []Violation
	if t.Year() < 1900 || t.Year() > now.Year() {
		violations = append(violations, hard(fmt.Sprintf("Tahun tidak valid: %d", t.Year())))
	} else if t.After(now) {
		violations = append(violations, hard("Tanggal lahir tidak boleh di masa depan"))
	}
	return violations
}

// AdjustConfidence applies the violation penalty to the model's confidence:
// 0.1 per violation capped at 0.3, clamped to [0,1].
func (v *Validator) AdjustConfidence(base float32, violationCount int) float32 {
	penalty := float32(violationCount) * 0.1
	if penalty > 0.3 {
		penalty = 0.3
	}
	adjusted := base - penalty
	if adjusted < 0 {
		return 0
	}
	if adjusted > 1 {
		return 1
	}
	return adjusted
}
