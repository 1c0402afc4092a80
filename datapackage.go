package wacz

import "context"

// Datapackage is the parsed datapackage.json manifest every WACZ carries.
// Fields the manifest does not set stay zero; unknown keys are ignored.
// Callers needing the verbatim document should use GetJSON with their own
// target type.
type Datapackage struct {
	Profile     string                `json:"profile"`
	WACZVersion string                `json:"wacz_version"`
	Title       string                `json:"title"`
	Software    string                `json:"software"`
	Created     string                `json:"created"`
	Modified    string                `json:"modified"`
	MainPageURL string                `json:"mainPageUrl"`
	Resources   []DatapackageResource `json:"resources"`
}

// DatapackageResource describes one file the manifest accounts for.
type DatapackageResource struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	Hash  string `json:"hash"`
	Bytes int64  `json:"bytes"`
}

// Datapackage reads and parses the container's datapackage.json.
func (a *Archive) Datapackage(ctx context.Context) (*Datapackage, error) {
	var dp Datapackage
	if err := a.GetJSON(ctx, "datapackage.json", &dp); err != nil {
		return nil, err
	}
	return &dp, nil
}
