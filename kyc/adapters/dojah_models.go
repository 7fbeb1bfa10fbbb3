package adapters

type dojahErrorResponse struct {
	Error string `json:"error"`
}

type dojahNINResponse struct {
	Entity dojahPerson `json:"entity"`
}

type dojahPerson struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	MiddleName  string `json:"middle_name"`
	Gender      string `json:"gender"`
	DateOfBirth string `json:"date_of_birth"`
	NIN         string `json:"nin"`
}

type dojahPassportResponse struct {
	Entity struct {
		PassportNumber string `json:"passport_number"`
		FirstName      string `json:"first_name"`
		LastName       string `json:"last_name"`
		Surname        string `json:"surname"`
		ExpiryDate     string `json:"expiry_date"`
	} `json:"entity"`
}

type dojahLicenseResponse struct {
	Entity struct {
		UUID         string `json:"uuid"`
		LicenseNo    string `json:"licenseNo"`
		FirstName    string `json:"firstName"`
		LastName     string `json:"lastName"`
		ExpiryDate   string `json:"expiryDate"`
		StateOfIssue string `json:"stateOfIssue"`
	} `json:"entity"`
}

type dojahVINResponse struct {
	Entity struct {
		FullName        string `json:"full_name"`
		FirstName       string `json:"first_name"`
		LastName        string `json:"last_name"`
		VoterIdentifier string `json:"voter_identification_number"`
		PollingUnit     string `json:"polling_unit"`
	} `json:"entity"`
}

type dojahAnalysisRequest struct {
	InputType    string                 `json:"input_type"`
	InputValue   string                 `json:"input_value"`
	DocumentType string                 `json:"document_type,omitempty"`
	MetaData     map[string]interface{} `json:"meta_data,omitempty"`
}

type dojahAnalysisResponse struct {
	Entity struct {
		ReferenceID string `json:"reference_id"`
		Status      string `json:"status"`
		TextData    []struct {
			FieldKey string `json:"field_key"`
			Value    string `json:"value"`
		} `json:"text_data"`
	} `json:"entity"`
}

func (r dojahAnalysisResponse) field(key string) string {
	for _, f := range r.Entity.TextData {
		if f.FieldKey == key {
			return f.Value
		}
	}
	return ""
}
