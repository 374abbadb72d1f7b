package buildcontactpayload

// Input holds the job variables read by the worker. PhotoData is a base64
// encoded image file; it and PhotoURL are mutually exclusive.
type Input struct {
	Mode      string `json:"mode"`
	Name      string `json:"name"`
	JobTitle  string `json:"jobTitle"`
	TaxID     string `json:"taxId"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
	Website   string `json:"website"`
	URL       string `json:"url"`
	PhotoURL  string `json:"photoUrl"`
	PhotoData string `json:"photoData"`
	Color     string `json:"color"`
}

type Output struct {
	QRValue  string `json:"qrValue"`
	QRColor  string `json:"qrColor"`
	HasPhoto bool   `json:"hasPhoto"`
	Mode     string `json:"mode"`
}
