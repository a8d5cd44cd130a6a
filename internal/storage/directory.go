package storage

// Directory records are owned by the excluded settings/personnel
// collaborators; this service only reads them for lookups.

type Personnel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RoleConfig carries the ordered assembly-stage list configured for a work
// discipline.
type RoleConfig struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	AssemblyStages []RoleStage `json:"assemblyStages"`
}

type RoleStage struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Order int    `json:"order"`
}
