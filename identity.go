package modsim

// DeviceIdentity is the static identity of the simulated device. It is passed
// to the protocol server unchanged.
type DeviceIdentity struct {
	VendorName         string `json:"vendor_name"`
	ProductCode        string `json:"product_code"`
	ProductName        string `json:"product_name"`
	ModelName          string `json:"model_name"`
	MajorMinorRevision string `json:"revision"`
}

func DefaultIdentity() DeviceIdentity {
	return DeviceIdentity{
		VendorName:         "modsim",
		ProductCode:        "MS",
		ProductName:        "modsim Server",
		ModelName:          "modsim Model",
		MajorMinorRevision: "1.0",
	}
}
