// Package adf parses Automotive Data Format XML as delivered by lead vendors.
// Vendor dialects disagree on nesting and optional blocks, so the document
// types here tolerate every absence; Normalize flattens them into one record.
package adf

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// ParseError means the document is unusable: not XML at all, or missing the
// prospect block entirely. Anything less severe is a validation warning.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("adf parse: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("adf parse: %s", e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Document mirrors the ADF 1.0 envelope. Every field below prospect is
// optional in the wild regardless of what the standard says.
type Document struct {
	XMLName  xml.Name `xml:"adf"`
	Prospect Prospect `xml:"prospect"`
}

type Prospect struct {
	RequestDate string    `xml:"requestdate"`
	ID          []TypedID `xml:"id"`
	Vehicles    []XVeh    `xml:"vehicle"`
	Customer    XCustomer `xml:"customer"`
	Vendor      XVendor   `xml:"vendor"`
	Provider    XProvider `xml:"provider"`
}

type TypedID struct {
	Source string `xml:"source,attr"`
	Value  string `xml:",chardata"`
}

type XVeh struct {
	Interest  string `xml:"interest,attr"`
	Status    string `xml:"status,attr"`
	VIN       string `xml:"vin"`
	Year      string `xml:"year"`
	Make      string `xml:"make"`
	Model     string `xml:"model"`
	Trim      string `xml:"trim"`
	StockNum  string `xml:"stock"`
	Condition string `xml:"condition"`
}

type XCustomer struct {
	Contact  XContact `xml:"contact"`
	Comments string   `xml:"comments"`
}

type XContact struct {
	Names   []XName  `xml:"name"`
	Emails  []string `xml:"email"`
	Phones  []XPhone `xml:"phone"`
	Address XAddress `xml:"address"`
}

// XName carries the part attribute ("first"/"last"/"full") some vendors use;
// others ship a single unattributed full name.
type XName struct {
	Part  string `xml:"part,attr"`
	Type  string `xml:"type,attr"`
	Value string `xml:",chardata"`
}

type XPhone struct {
	Type  string `xml:"type,attr"`
	Time  string `xml:"time,attr"`
	Value string `xml:",chardata"`
}

type XAddress struct {
	Street  []string `xml:"street"`
	City    string   `xml:"city"`
	State   string   `xml:"regioncode"`
	Zip     string   `xml:"postalcode"`
	Country string   `xml:"country"`
}

type XVendor struct {
	VendorName string   `xml:"vendorname"`
	Contact    XContact `xml:"contact"`
}

type XProvider struct {
	Name    string `xml:"name"`
	Service string `xml:"service"`
	URL     string `xml:"url"`
}

// Parse decodes raw ADF XML. It fails only when the payload cannot yield a
// prospect at all; partial documents come back intact for Normalize to grade.
func Parse(raw []byte) (*Document, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return nil, &ParseError{Reason: "empty payload"}
	}

	var doc Document
	if err := xml.Unmarshal([]byte(trimmed), &doc); err != nil {
		return nil, &ParseError{Reason: "malformed xml", Err: err}
	}

	if isEmptyProspect(doc.Prospect) {
		return nil, &ParseError{Reason: "document has no prospect data"}
	}
	return &doc, nil
}

func isEmptyProspect(p Prospect) bool {
	return len(p.Customer.Contact.Names) == 0 &&
		len(p.Customer.Contact.Emails) == 0 &&
		len(p.Customer.Contact.Phones) == 0 &&
		len(p.Vehicles) == 0
}
