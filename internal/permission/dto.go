package permission

type UpdateOverrideDTO struct {
	Permissions Matrix `json:"permissions"`
	Notes       string `json:"notes"`
}

type StructureResponse struct {
	Sections []Section `json:"sections"`
	Roles    []string  `json:"roles"`
}

type CheckResponse struct {
	Decision Decision `json:"decision"`
}
