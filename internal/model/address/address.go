package address

// Region is a top-level PSGC subdivision.
type Region struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	RegionName string `json:"regionName,omitempty"`
}

// Province belongs to a region.
type Province struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	RegionCode string `json:"regionCode"`
}

// CityMunicipality belongs to a province.
type CityMunicipality struct {
	Code         string `json:"code"`
	Name         string `json:"name"`
	ProvinceCode string `json:"provinceCode"`
	IsCity       bool   `json:"isCity"`
}

// Barangay is the smallest subdivision.
type Barangay struct {
	Code                 string `json:"code"`
	Name                 string `json:"name"`
	CityMunicipalityCode string `json:"cityMunicipalityCode"`
}

// PlaceAddress mirrors the Nominatim address breakdown.
type PlaceAddress struct {
	State    string `json:"state,omitempty"`
	County   string `json:"county,omitempty"`
	City     string `json:"city,omitempty"`
	Town     string `json:"town,omitempty"`
	Village  string `json:"village,omitempty"`
	Suburb   string `json:"suburb,omitempty"`
	Postcode string `json:"postcode,omitempty"`
	Country  string `json:"country,omitempty"`
}

// Place is a geocoding result.
type Place struct {
	DisplayName string       `json:"displayName"`
	Lat         float64      `json:"lat"`
	Lon         float64      `json:"lon"`
	Address     PlaceAddress `json:"address"`
}

// Locality returns the province and city the storefront derives from a
// geocoding result.
func (p Place) Locality() (province, city string) {
	province = p.Address.State
	if province == "" {
		province = p.Address.County
	}
	city = p.Address.City
	if city == "" {
		city = p.Address.Town
	}
	return province, city
}

// Address is a saved delivery address.
type Address struct {
	ID        string   `json:"id,omitempty"`
	Label     string   `json:"label,omitempty"`
	IsDefault bool     `json:"isDefault"`
	FullName  string   `json:"fullName"`
	Phone     string   `json:"phone"`
	Line1     string   `json:"line1,omitempty"`
	Line2     string   `json:"line2,omitempty"`
	Region    string   `json:"region,omitempty"`
	Province  string   `json:"province,omitempty"`
	City      string   `json:"city,omitempty"`
	Barangay  string   `json:"barangay,omitempty"`
	ZipCode   string   `json:"zipCode,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}
