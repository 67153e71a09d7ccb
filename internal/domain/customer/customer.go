// Package customer holds the customer record referenced by sales.
package customer

import "strings"

// Customer is a buyer identified by a padded sequential ID.
type Customer struct {
	ID      string
	Name    string
	Phone   string
	Email   string
	Address string
}

// Details are inline customer fields entered at checkout.
type Details struct {
	Name    string
	Phone   string
	Email   string
	Address string
}

// Trim returns d with surrounding whitespace removed from every field.
func (d Details) Trim() Details {
	return Details{
		Name:    strings.TrimSpace(d.Name),
		Phone:   strings.TrimSpace(d.Phone),
		Email:   strings.TrimSpace(d.Email),
		Address: strings.TrimSpace(d.Address),
	}
}

// Empty reports whether every field is blank.
func (d Details) Empty() bool {
	t := d.Trim()
	return t.Name == "" && t.Phone == "" && t.Email == "" && t.Address == ""
}
