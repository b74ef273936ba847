package adf

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Fingerprint computes the dedupe hash for a normalized lead. Two deliveries
// of the same physical lead (same dealer, same customer, same vehicle) hash
// identically no matter how subjects, timestamps or message ids differ; a
// different vehicle from the same customer is a distinct lead.
func Fingerprint(tenantID int64, lead *NormalizedLead) string {
	parts := []string{
		fmt.Sprintf("%d", tenantID),
		canon(lead.FirstName + " " + lead.LastName),
		contactKey(lead),
		canon(lead.VendorName),
		vehicleKey(lead.Vehicle),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// contactKey prefers email, falling back to the digits of the phone number.
func contactKey(lead *NormalizedLead) string {
	if lead.Email != "" {
		return canon(lead.Email)
	}
	return digitsOnly(lead.Phone)
}

// vehicleKey uses the VIN when present; otherwise make+model+year identifies
// the vehicle.
func vehicleKey(v NormalizedVehicle) string {
	if v.VIN != "" {
		return canon(v.VIN)
	}
	return canon(v.Make) + ":" + canon(v.Model) + ":" + canon(v.Year)
}

func canon(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
