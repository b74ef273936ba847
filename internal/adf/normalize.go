package adf

import (
	"fmt"
	"strings"
)

// Warning flags a recoverable gap in an otherwise usable document. Warnings
// never abort ingestion; the lead is persisted with gaps for manual follow-up.
type Warning struct {
	Field   string
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Field, w.Message)
}

// NormalizedLead is the flat, vendor-neutral view of one prospect.
type NormalizedLead struct {
	FirstName    string
	LastName     string
	Email        string
	Phone        string
	Street       string
	City         string
	State        string
	ZipCode      string
	Comments     string
	VendorName   string
	ProviderName string
	Vehicle      NormalizedVehicle
	TradeIn      *NormalizedVehicle
}

type NormalizedVehicle struct {
	VIN       string
	Year      string
	Make      string
	Model     string
	Trim      string
	StockNum  string
	Condition string
}

// Normalize flattens a parsed document, recording a warning for every
// optional path that is missing or unusable.
func Normalize(doc *Document) (*NormalizedLead, []Warning) {
	var warnings []Warning

	lead := &NormalizedLead{
		Comments:     strings.TrimSpace(doc.Prospect.Customer.Comments),
		VendorName:   strings.TrimSpace(doc.Prospect.Vendor.VendorName),
		ProviderName: strings.TrimSpace(doc.Prospect.Provider.Name),
	}

	lead.FirstName, lead.LastName = normalizeName(doc.Prospect.Customer.Contact.Names)
	if lead.FirstName == "" && lead.LastName == "" {
		warnings = append(warnings, Warning{"name", "no customer name present"})
	}

	lead.Email = firstNonEmpty(doc.Prospect.Customer.Contact.Emails)
	if lead.Email != "" && !strings.Contains(lead.Email, "@") {
		warnings = append(warnings, Warning{"email", "value does not look like an email address"})
		lead.Email = ""
	}

	lead.Phone = pickPhone(doc.Prospect.Customer.Contact.Phones)
	if lead.Email == "" && lead.Phone == "" {
		warnings = append(warnings, Warning{"contact", "neither email nor phone present"})
	}

	addr := doc.Prospect.Customer.Contact.Address
	lead.Street = strings.TrimSpace(strings.Join(addr.Street, " "))
	lead.City = strings.TrimSpace(addr.City)
	lead.State = strings.TrimSpace(addr.State)
	lead.ZipCode = strings.TrimSpace(addr.Zip)

	if lead.VendorName == "" {
		warnings = append(warnings, Warning{"vendor", "vendor name missing"})
	}

	interest, tradeIn := splitVehicles(doc.Prospect.Vehicles)
	if interest == nil {
		warnings = append(warnings, Warning{"vehicle", "no vehicle of interest present"})
	} else {
		lead.Vehicle = *interest
		if lead.Vehicle.VIN == "" && (lead.Vehicle.Make == "" || lead.Vehicle.Model == "") {
			warnings = append(warnings, Warning{"vehicle", "no VIN and incomplete make/model"})
		}
	}
	lead.TradeIn = tradeIn

	return lead, warnings
}

// normalizeName handles both part-attributed name elements and a single full
// name, which some vendors ship with no part attribute at all.
func normalizeName(names []XName) (first, last string) {
	var full string
	for _, n := range names {
		v := strings.TrimSpace(n.Value)
		if v == "" {
			continue
		}
		switch strings.ToLower(n.Part) {
		case "first":
			first = v
		case "last":
			last = v
		case "full", "":
			full = v
		}
	}
	if first == "" && last == "" && full != "" {
		parts := strings.Fields(full)
		first = parts[0]
		if len(parts) > 1 {
			last = strings.Join(parts[1:], " ")
		}
	}
	return first, last
}

// pickPhone prefers voice/cellphone entries over fax, falling back to the
// first number present.
func pickPhone(phones []XPhone) string {
	var fallback string
	for _, p := range phones {
		v := strings.TrimSpace(p.Value)
		if v == "" {
			continue
		}
		switch strings.ToLower(p.Type) {
		case "voice", "cellphone", "cell", "":
			return v
		case "fax":
			continue
		default:
			if fallback == "" {
				fallback = v
			}
		}
	}
	return fallback
}

func splitVehicles(vehicles []XVeh) (interest, tradeIn *NormalizedVehicle) {
	for i := range vehicles {
		v := vehicles[i]
		nv := &NormalizedVehicle{
			VIN:       strings.ToUpper(strings.TrimSpace(v.VIN)),
			Year:      strings.TrimSpace(v.Year),
			Make:      strings.TrimSpace(v.Make),
			Model:     strings.TrimSpace(v.Model),
			Trim:      strings.TrimSpace(v.Trim),
			StockNum:  strings.TrimSpace(v.StockNum),
			Condition: strings.TrimSpace(v.Condition),
		}
		if strings.EqualFold(v.Interest, "trade-in") || strings.EqualFold(v.Interest, "sell") {
			if tradeIn == nil {
				tradeIn = nv
			}
			continue
		}
		if interest == nil {
			interest = nv
		}
	}
	return interest, tradeIn
}

func firstNonEmpty(values []string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
