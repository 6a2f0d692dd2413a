package address

import (
	"errors"
	"strings"

	"github.com/ecomxpert/storefront/backend/internal/model/address"
)

// Picking methods.
const (
	MethodSelect = "select"
	MethodMap    = "map"
)

var (
	ErrNoMethod         = errors.New("please select an address method")
	ErrUnknownMethod    = errors.New("unknown address method")
	ErrSelectIncomplete = errors.New("full name, phone and a complete region, province, city and barangay are required")
	ErrMapIncomplete    = errors.New("full name, phone and a confirmed map location are required")
)

// Subdivision is a picked PSGC level: its code and display name.
type Subdivision struct {
	Code string `json:"code,omitempty"`
	Name string `json:"name"`
}

// Draft is an address being composed either from the subdivision
// cascade or from a map pin.
type Draft struct {
	Method    string      `json:"method"`
	Label     string      `json:"label,omitempty"`
	FullName  string      `json:"fullName"`
	Phone     string      `json:"phone"`
	Line1     string      `json:"line1,omitempty"`
	ZipCode   string      `json:"zipCode,omitempty"`
	IsDefault bool        `json:"isDefault,omitempty"`
	Region    Subdivision `json:"region"`
	Province  Subdivision `json:"province"`
	City      Subdivision `json:"city"`
	Barangay  Subdivision `json:"barangay"`
	Latitude  *float64    `json:"latitude,omitempty"`
	Longitude *float64    `json:"longitude,omitempty"`
}

// FromAddress starts a draft from a saved address. A complete cascade
// implies the select method; coordinates without a region imply map.
func FromAddress(a address.Address) Draft {
	d := Draft{
		Label:     a.Label,
		FullName:  a.FullName,
		Phone:     a.Phone,
		Line1:     a.Line1,
		ZipCode:   a.ZipCode,
		IsDefault: a.IsDefault,
		Region:    Subdivision{Name: a.Region},
		Province:  Subdivision{Name: a.Province},
		City:      Subdivision{Name: a.City},
		Barangay:  Subdivision{Name: a.Barangay},
		Latitude:  a.Latitude,
		Longitude: a.Longitude,
	}
	if d.cascadeComplete() {
		d.Method = MethodSelect
	}
	if a.Latitude != nil && a.Longitude != nil && a.Region == "" {
		d.Method = MethodMap
	}
	return d
}

// PickRegion sets the region and clears every level below it.
func (d *Draft) PickRegion(s Subdivision) {
	d.Region = s
	d.Province = Subdivision{}
	d.City = Subdivision{}
	d.Barangay = Subdivision{}
}

// PickProvince sets the province and clears city and barangay.
func (d *Draft) PickProvince(s Subdivision) {
	d.Province = s
	d.City = Subdivision{}
	d.Barangay = Subdivision{}
}

// PickCity sets the city or municipality and clears the barangay.
func (d *Draft) PickCity(s Subdivision) {
	d.City = s
	d.Barangay = Subdivision{}
}

// PickBarangay completes the cascade and switches to the select method.
func (d *Draft) PickBarangay(s Subdivision) {
	d.Barangay = s
	if d.cascadeComplete() {
		d.Method = MethodSelect
	}
}

// ApplyPlace fills province, city and coordinates from a geocoding
// result and switches to the map method.
func (d *Draft) ApplyPlace(p address.Place) {
	province, city := p.Locality()
	d.Province = Subdivision{Name: province}
	d.City = Subdivision{Name: city}
	lat, lon := p.Lat, p.Lon
	d.Latitude = &lat
	d.Longitude = &lon
	d.Method = MethodMap
}

func (d Draft) cascadeComplete() bool {
	return d.Region.Name != "" && d.Province.Name != "" && d.City.Name != "" && d.Barangay.Name != ""
}

// Validate checks the fields the chosen method requires.
func (d Draft) Validate() error {
	hasContact := strings.TrimSpace(d.FullName) != "" && strings.TrimSpace(d.Phone) != ""
	switch d.Method {
	case "":
		return ErrNoMethod
	case MethodSelect:
		if !hasContact || !d.cascadeComplete() {
			return ErrSelectIncomplete
		}
	case MethodMap:
		if !hasContact || d.Latitude == nil || d.Longitude == nil || (*d.Latitude == 0 && *d.Longitude == 0) {
			return ErrMapIncomplete
		}
	default:
		return ErrUnknownMethod
	}
	return nil
}

// FullAddress renders the picked levels, smallest first.
func (d Draft) FullAddress() string {
	parts := make([]string, 0, 4)
	for _, s := range []Subdivision{d.Barangay, d.City, d.Province, d.Region} {
		if s.Name != "" {
			parts = append(parts, s.Name)
		}
	}
	return strings.Join(parts, ", ")
}

// ToAddress validates the draft and converts it to an address record.
func (d Draft) ToAddress() (address.Address, error) {
	if err := d.Validate(); err != nil {
		return address.Address{}, err
	}
	a := address.Address{
		Label:     d.Label,
		IsDefault: d.IsDefault,
		FullName:  strings.TrimSpace(d.FullName),
		Phone:     strings.TrimSpace(d.Phone),
		Line1:     d.Line1,
		Region:    d.Region.Name,
		Province:  d.Province.Name,
		City:      d.City.Name,
		Barangay:  d.Barangay.Name,
		ZipCode:   d.ZipCode,
	}
	if a.Line1 == "" {
		a.Line1 = d.FullAddress()
	}
	if d.Method == MethodMap {
		a.Latitude = d.Latitude
		a.Longitude = d.Longitude
	}
	if a.Label == "" {
		a.Label = "home"
	}
	return a, nil
}
