package model

import "time"

// Record carries the columns every table shares.
type Record struct {
	ID         int64     `json:"id" yaml:"id"`
	IsDeleted  bool      `json:"isDeleted" yaml:"isDeleted"`
	CreateDate time.Time `json:"createDate" yaml:"createDate"`
	UpdateDate time.Time `json:"updateDate" yaml:"updateDate"`
}

// Meta returns the shared columns for generic storage code.
func (r *Record) Meta() *Record { return r }

type Project struct {
	Record    `yaml:",inline"`
	Name      string `json:"name" yaml:"name" validate:"required"`
	Completed bool   `json:"completed" yaml:"completed"`
}

type Section struct {
	Record    `yaml:",inline"`
	ProjectID int64  `json:"projectId" yaml:"projectId" validate:"required"`
	Name      string `json:"name" yaml:"name" validate:"required"`
}

type SectionItem struct {
	Record     `yaml:",inline"`
	SectionID  int64  `json:"sectionId" yaml:"sectionId" validate:"required"`
	Text       string `json:"text" yaml:"text" validate:"required"`
	IsComplete bool   `json:"isComplete" yaml:"isComplete"`
	Order      int    `json:"order" yaml:"order"`
}

type SectionItemNote struct {
	Record        `yaml:",inline"`
	SectionItemID int64  `json:"sectionItemId" yaml:"sectionItemId" validate:"required"`
	Text          string `json:"text" yaml:"text" validate:"required"`
}

type ProjectImage struct {
	Record    `yaml:",inline"`
	ProjectID int64 `json:"projectId" yaml:"projectId" validate:"required"`
	// FilePath is relative to the image store root.
	FilePath string `json:"filePath" yaml:"filePath" validate:"required"`
}

// ProjectSummary is the lightweight {id, name} pair shared with the import surface.
type ProjectSummary struct {
	ID   int64  `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}
