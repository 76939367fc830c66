package models

// ReportContext is the fully grouped output consumed by the HTML renderer
// and the wiki draft builder.
type ReportContext struct {
	Year            int            `json:"year"`
	TotalCount      int            `json:"total_count"`
	Months          []MonthSlot    `json:"months"`
	TypeCounts      []TypeCount    `json:"type_counts"`
	LabelCounts     []LabelCount   `json:"label_counts"`
	Projects        []ProjectGroup `json:"projects"`
	VersionProjects []ProjectGroup `json:"version_projects"`
	DiagnosticCount int            `json:"diagnostic_count"`
}

// MonthSlot is one slot of the fixed 12-month grid. Month runs 1 through 12.
type MonthSlot struct {
	Month  int              `json:"month"`
	Count  int              `json:"count"`
	Issues []ProcessedIssue `json:"issues"`
}

// TypeCount is an aggregate count for one issue type.
type TypeCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// LabelCount is an aggregate count for one label.
type LabelCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// ProjectGroup holds one project's subgroups for either the epic view or
// the version view.
type ProjectGroup struct {
	Name   string     `json:"name"`
	Groups []SubGroup `json:"groups"`
}

// SubGroup is one epic or version bucket within a project.
type SubGroup struct {
	Title     string      `json:"title"`
	Key       string      `json:"key,omitempty"`
	Link      string      `json:"link,omitempty"`
	Roots     []IssueNode `json:"roots"`
	IsVersion bool        `json:"is_version"`
	Count     int         `json:"count"`
}

// IssueNode is a node of the parent-to-children display tree. An issue whose
// parent is outside its group becomes a root.
type IssueNode struct {
	Issue    ProcessedIssue `json:"issue"`
	Children []IssueNode    `json:"children"`
}
