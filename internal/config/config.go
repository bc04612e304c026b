// Package config provides configuration management.
//
// A configuration file may be JSON, YAML or HCL; the format is chosen by
// file extension. Values missing from the file keep their defaults, which
// reproduce the reference analysis run.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"gopkg.in/yaml.v3"

	"tax-uncertainty/internal/errors"
	"tax-uncertainty/internal/logging"
)

// Config is the main application configuration
type Config struct {
	// Version is the configuration version
	Version string `json:"version" yaml:"version"`

	// Model holds preferences and the time endowment
	Model ModelConfig `json:"model" yaml:"model"`

	// Choice controls the leisure grid and rate quadrature
	Choice ChoiceConfig `json:"choice" yaml:"choice"`

	// Agent is the single worker used by the bias and uncertainty curves
	Agent AgentConfig `json:"agent" yaml:"agent"`

	// Bias configures the misperception curve
	Bias BiasConfig `json:"bias" yaml:"bias"`

	// Uncertainty configures the loss-versus-sd curve
	Uncertainty UncertaintyConfig `json:"uncertainty" yaml:"uncertainty"`

	// TwoWorker configures the two-worker planner
	TwoWorker TwoWorkerConfig `json:"two_worker" yaml:"two_worker"`

	// Search configures the optimal tax search
	Search SearchConfig `json:"search" yaml:"search"`

	// Population configures the sampled wage distribution
	Population PopulationConfig `json:"population" yaml:"population"`

	// Output contains output configuration
	Output OutputConfig `json:"output" yaml:"output"`

	// Logging contains logging configuration
	Logging logging.Config `json:"logging" yaml:"logging"`
}

// ModelConfig holds Cobb-Douglas exponents and total time
type ModelConfig struct {
	Alpha     float64 `json:"alpha" yaml:"alpha" hcl:"alpha,optional" validate:"gt=0"`
	Beta      float64 `json:"beta" yaml:"beta" hcl:"beta,optional" validate:"gt=0"`
	TotalTime float64 `json:"total_time" yaml:"total_time" hcl:"total_time,optional" validate:"gt=0"`
}

// ChoiceConfig controls the EU-max search
type ChoiceConfig struct {
	// LeisurePoints is the size of the leisure grid over [0, T]
	LeisurePoints int `json:"leisure_points" yaml:"leisure_points" hcl:"leisure_points,optional" validate:"min=2"`

	// QuadratureNodes is the node count for gaussian rate distributions
	QuadratureNodes int `json:"quadrature_nodes" yaml:"quadrature_nodes" hcl:"quadrature_nodes,optional" validate:"min=1"`

	// Kind is gaussian or five_point
	Kind string `json:"kind" yaml:"kind" hcl:"kind,optional" validate:"oneof=gaussian five_point"`

	// Clip is none or unit
	Clip string `json:"clip" yaml:"clip" hcl:"clip,optional" validate:"oneof=none unit"`
}

// AgentConfig is a single worker facing a mean tax rate
type AgentConfig struct {
	Wage           float64 `json:"wage" yaml:"wage" hcl:"wage,optional" validate:"gt=0"`
	NonlaborIncome float64 `json:"nonlabor_income" yaml:"nonlabor_income" hcl:"nonlabor_income,optional" validate:"gte=0"`
	Tax            float64 `json:"tax" yaml:"tax" hcl:"tax,optional" validate:"lt=1"`
}

// BiasConfig is the symmetric bias grid [-BiasMax, BiasMax]
type BiasConfig struct {
	BiasMax float64 `json:"bias_max" yaml:"bias_max" hcl:"bias_max,optional" validate:"gt=0"`
	Points  int     `json:"points" yaml:"points" hcl:"points,optional" validate:"min=2"`
}

// UncertaintyConfig is the sd grid [0, SDMax]
type UncertaintyConfig struct {
	SDMax  float64 `json:"sd_max" yaml:"sd_max" hcl:"sd_max,optional" validate:"gt=0"`
	Points int     `json:"points" yaml:"points" hcl:"points,optional" validate:"min=2"`
}

// TwoWorkerConfig configures the two-worker planner block
type TwoWorkerConfig struct {
	Wage1        float64   `json:"wage1" yaml:"wage1" hcl:"wage1,optional" validate:"gt=0"`
	Wage2        float64   `json:"wage2" yaml:"wage2" hcl:"wage2,optional" validate:"gt=0,nefield=Wage1"`
	Weights      []float64 `json:"weights" yaml:"weights" hcl:"weights,optional" validate:"omitempty,len=2,dive,gte=0"`
	SD           float64   `json:"sd" yaml:"sd" hcl:"sd,optional" validate:"gte=0"`
	TaxMin       float64   `json:"tax_min" yaml:"tax_min" hcl:"tax_min,optional"`
	TaxMax       float64   `json:"tax_max" yaml:"tax_max" hcl:"tax_max,optional" validate:"gtfield=TaxMin,lt=1"`
	TaxPoints    int       `json:"tax_points" yaml:"tax_points" hcl:"tax_points,optional" validate:"min=2"`
	Redistribute bool      `json:"redistribute" yaml:"redistribute" hcl:"redistribute,optional"`
}

// SearchConfig configures the optimal tax search
type SearchConfig struct {
	TaxLow       float64 `json:"tax_low" yaml:"tax_low" hcl:"tax_low,optional"`
	TaxHigh      float64 `json:"tax_high" yaml:"tax_high" hcl:"tax_high,optional" validate:"gtfield=TaxLow,lt=1"`
	TaxPoints    int     `json:"tax_points" yaml:"tax_points" hcl:"tax_points,optional" validate:"min=2"`
	SDMax        float64 `json:"sd_max" yaml:"sd_max" hcl:"sd_max,optional" validate:"gt=0"`
	SDPoints     int     `json:"sd_points" yaml:"sd_points" hcl:"sd_points,optional" validate:"min=2"`
	Redistribute bool    `json:"redistribute" yaml:"redistribute" hcl:"redistribute,optional"`

	// Workers bounds the worker pool; 0 means one per CPU
	Workers     int  `json:"workers" yaml:"workers" hcl:"workers,optional" validate:"gte=0"`
	StopOnError bool `json:"stop_on_error" yaml:"stop_on_error" hcl:"stop_on_error,optional"`
}

// PopulationConfig configures the log-normal wage draw
type PopulationConfig struct {
	Size           int     `json:"size" yaml:"size" hcl:"size,optional" validate:"min=1"`
	WageMedian     float64 `json:"wage_median" yaml:"wage_median" hcl:"wage_median,optional" validate:"gt=0"`
	WageShape      float64 `json:"wage_shape" yaml:"wage_shape" hcl:"wage_shape,optional" validate:"gt=0"`
	NonlaborIncome float64 `json:"nonlabor_income" yaml:"nonlabor_income" hcl:"nonlabor_income,optional" validate:"gte=0"`
	Seed           uint64  `json:"seed" yaml:"seed" hcl:"seed,optional"`
}

// OutputConfig contains output-related settings
type OutputConfig struct {
	// Format is table, json or csv
	Format string `json:"format" yaml:"format" hcl:"format,optional" validate:"oneof=table json csv"`

	// Precision is the number of decimals rendered
	Precision int `json:"precision" yaml:"precision" hcl:"precision,optional" validate:"min=1,max=16"`

	// IncludeCells adds per-cell welfare to search output
	IncludeCells bool `json:"include_cells" yaml:"include_cells" hcl:"include_cells,optional"`
}

// hclDocument maps top-level HCL blocks onto the sections of a Config.
// Pointer blocks that are absent from the file leave the section alone.
type hclDocument struct {
	Version     *string            `hcl:"version,optional"`
	Model       *ModelConfig       `hcl:"model,block"`
	Choice      *ChoiceConfig      `hcl:"choice,block"`
	Agent       *AgentConfig       `hcl:"agent,block"`
	Bias        *BiasConfig        `hcl:"bias,block"`
	Uncertainty *UncertaintyConfig `hcl:"uncertainty,block"`
	TwoWorker   *TwoWorkerConfig   `hcl:"two_worker,block"`
	Search      *SearchConfig      `hcl:"search,block"`
	Population  *PopulationConfig  `hcl:"population,block"`
	Output      *OutputConfig      `hcl:"output,block"`
	Logging     *logging.Config    `hcl:"logging,block"`
}

func (c *Config) hclDocument() *hclDocument {
	return &hclDocument{
		Version:     &c.Version,
		Model:       &c.Model,
		Choice:      &c.Choice,
		Agent:       &c.Agent,
		Bias:        &c.Bias,
		Uncertainty: &c.Uncertainty,
		TwoWorker:   &c.TwoWorker,
		Search:      &c.Search,
		Population:  &c.Population,
		Output:      &c.Output,
		Logging:     &c.Logging,
	}
}

// Default returns a default configuration
func Default() *Config {
	return &Config{
		Version: "1.0",
		Model: ModelConfig{
			Alpha:     0.5,
			Beta:      0.5,
			TotalTime: 24,
		},
		Choice: ChoiceConfig{
			LeisurePoints:   241,
			QuadratureNodes: 5,
			Kind:            "gaussian",
			Clip:            "unit",
		},
		Agent: AgentConfig{
			Wage: 20,
			Tax:  0.3,
		},
		Bias: BiasConfig{
			BiasMax: 0.3,
			Points:  121,
		},
		Uncertainty: UncertaintyConfig{
			SDMax:  0.2,
			Points: 25,
		},
		TwoWorker: TwoWorkerConfig{
			Wage1:        20,
			Wage2:        40,
			Weights:      []float64{1, 1},
			SD:           0.1,
			TaxMin:       0.05,
			TaxMax:       0.6,
			TaxPoints:    40,
			Redistribute: true,
		},
		Search: SearchConfig{
			TaxLow:       0.05,
			TaxHigh:      0.6,
			TaxPoints:    40,
			SDMax:        0.2,
			SDPoints:     9,
			Redistribute: true,
		},
		Population: PopulationConfig{
			Size:       2000,
			WageMedian: 20,
			WageShape:  0.5,
			Seed:       42,
		},
		Output: OutputConfig{
			Format:    "table",
			Precision: 6,
		},
		Logging: logging.DefaultConfig(),
	}
}

// Format is a configuration file format
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatHCL  Format = "hcl"
)

// FormatOf picks the file format from the path's extension
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".hcl":
		return FormatHCL, nil
	default:
		return "", errors.Config(fmt.Sprintf("unsupported config file extension %q", filepath.Ext(path)), nil)
	}
}

// Load loads configuration from a file. A missing file yields the
// defaults. The result is validated.
func Load(path string) (*Config, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, errors.Config("failed to read config file", err)
	}

	config, err := Parse(data, path, format)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Parse decodes data over the defaults without validating. filename is
// used in HCL diagnostics.
func Parse(data []byte, filename string, format Format) (*Config, error) {
	config := Default()

	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, config); err != nil {
			return nil, errors.Config("failed to parse JSON config", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, errors.Config("failed to parse YAML config", err)
		}
	case FormatHCL:
		if err := decodeHCL(data, filename, config); err != nil {
			return nil, err
		}
	default:
		return nil, errors.Config(fmt.Sprintf("unsupported config format %q", format), nil)
	}
	return config, nil
}

func decodeHCL(data []byte, filename string, config *Config) error {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return hclError("failed to parse HCL config", diags)
	}

	doc := config.hclDocument()
	diags = gohcl.DecodeBody(file.Body, nil, doc)
	if diags.HasErrors() {
		return hclError("invalid HCL config", diags)
	}
	if doc.Version != nil {
		config.Version = *doc.Version
	}
	return nil
}

// hclError reports the first error diagnostic with its line
func hclError(message string, diags hcl.Diagnostics) error {
	for _, diag := range diags {
		if diag.Severity != hcl.DiagError {
			continue
		}
		line := 0
		if diag.Subject != nil {
			line = diag.Subject.Start.Line
		}
		return errors.Config(message, diags).
			WithContext("line", line).
			WithContext("detail", diag.Summary+": "+diag.Detail)
	}
	return errors.Config(message, diags)
}

// Save saves configuration to a file in the format given by its extension
func (c *Config) Save(path string) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}

	data, err := c.Encode(format)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Config("failed to create config directory", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Config("failed to write config file", err)
	}
	return nil
}

// Encode renders the configuration in the given format
func (c *Config) Encode(format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(c, "", "  ")
		if err != nil {
			return nil, errors.Config("failed to encode JSON config", err)
		}
		return append(data, '\n'), nil
	case FormatYAML:
		data, err := yaml.Marshal(c)
		if err != nil {
			return nil, errors.Config("failed to encode YAML config", err)
		}
		return data, nil
	case FormatHCL:
		f := hclwrite.NewEmptyFile()
		gohcl.EncodeIntoBody(c.hclDocument(), f.Body())
		return f.Bytes(), nil
	default:
		return nil, errors.Config(fmt.Sprintf("unsupported config format %q", format), nil)
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report fields by their file key, e.g. search.tax_high
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks every section. The error names the first invalid field.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return errors.Config("invalid configuration", err)
	}

	fe := verrs[0]
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	msg := fmt.Sprintf("invalid %s: failed %q", field, fe.Tag())
	if fe.Param() != "" {
		msg = fmt.Sprintf("invalid %s: failed %q (%s)", field, fe.Tag(), fe.Param())
	}
	return errors.Config(msg, err).WithContext("field", field)
}

// Field returns the field named by a configuration validation error
func Field(err error) string {
	var e *errors.Error
	if !errors.As(err, &e) || e.Context == nil {
		return ""
	}
	f, _ := e.Context["field"].(string)
	return f
}

// Global configuration instance
var globalConfig = Default()

// Get returns the global configuration
func Get() *Config {
	return globalConfig
}

// Set sets the global configuration
func Set(config *Config) {
	globalConfig = config
}
