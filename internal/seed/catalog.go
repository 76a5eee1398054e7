package seed

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rockymount114/City-Workflow/internal/models"
	"github.com/rockymount114/City-Workflow/internal/validation"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

//go:embed data/catalog.yml
var catalogYAML []byte

// CatalogField is a custom field definition in the catalog file.
type CatalogField struct {
	Name     string         `yaml:"name"`
	Label    string         `yaml:"label"`
	Type     string         `yaml:"type"`
	Required bool           `yaml:"required"`
	Order    int            `yaml:"order"`
	Config   map[string]any `yaml:"config"`
}

// CatalogApp is one built-in application.
type CatalogApp struct {
	Name             string         `yaml:"name"`
	Description      string         `yaml:"description"`
	RequiresApproval *bool          `yaml:"requiresApproval"`
	ApprovalWorkflow []string       `yaml:"approvalWorkflow"`
	CustomFields     []CatalogField `yaml:"customFields"`
}

// LoadCatalog parses the embedded catalog.
func LoadCatalog() ([]CatalogApp, error) {
	var doc struct {
		Applications []CatalogApp `yaml:"applications"`
	}
	if err := yaml.Unmarshal(catalogYAML, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return doc.Applications, nil
}

// Input converts the entry to the admin API payload so it passes the same
// validation as applications created over HTTP.
func (a CatalogApp) Input() (validation.ApplicationInput, error) {
	in := validation.ApplicationInput{
		Name:             a.Name,
		Description:      a.Description,
		RequiresApproval: a.RequiresApproval,
		ApprovalWorkflow: a.ApprovalWorkflow,
	}
	for _, f := range a.CustomFields {
		fi := validation.FieldInput{
			Name:     f.Name,
			Label:    f.Label,
			Type:     f.Type,
			Required: f.Required,
			Order:    f.Order,
		}
		if len(f.Config) > 0 {
			raw, err := json.Marshal(f.Config)
			if err != nil {
				return validation.ApplicationInput{}, fmt.Errorf("%s.%s config: %w", a.Name, f.Name, err)
			}
			fi.Config = raw
		}
		in.CustomFields = append(in.CustomFields, fi)
	}
	in.Normalize()
	return in, nil
}

// Catalog creates the catalog applications that do not exist yet and
// returns how many were created. Existing applications are left as the
// admins configured them.
func Catalog(db *gorm.DB) (int, error) {
	apps, err := LoadCatalog()
	if err != nil {
		return 0, err
	}

	created := 0
	for _, entry := range apps {
		in, err := entry.Input()
		if err != nil {
			return created, err
		}
		app, err := in.Build()
		if err != nil {
			return created, fmt.Errorf("catalog entry %q: %w", entry.Name, err)
		}

		err = db.Transaction(func(tx *gorm.DB) error {
			var existing models.Application
			findErr := tx.Where("name = ?", app.Name).First(&existing).Error
			if findErr == nil {
				return nil
			}
			if !errors.Is(findErr, gorm.ErrRecordNotFound) {
				return findErr
			}
			if err := tx.Create(app).Error; err != nil {
				return err
			}
			created++
			return nil
		})
		if err != nil {
			return created, fmt.Errorf("seed application %q: %w", entry.Name, err)
		}
	}
	return created, nil
}
