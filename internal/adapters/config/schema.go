package config

// Workspacefile represents the structure of the monorun.yaml configuration file.
type Workspacefile struct {
	Version     string              `yaml:"version"`
	Parallelism int                 `yaml:"parallelism"`
	Cache       *CacheDTO           `yaml:"cache"`
	Phases      map[string]PhaseDTO `yaml:"phases"`
	Projects    []ProjectDTO        `yaml:"projects"`
}

// CacheDTO represents the cache section.
type CacheDTO struct {
	Enabled   *bool     `yaml:"enabled"`
	LocalPath string    `yaml:"localPath"`
	Prefix    string    `yaml:"prefix"`
	Cloud     *CloudDTO `yaml:"cloud"`
}

// CloudDTO represents the cloud cache tier. Credentials normally come from the environment.
type CloudDTO struct {
	Endpoint     string `yaml:"endpoint"`
	Bucket       string `yaml:"bucket"`
	Region       string `yaml:"region"`
	Prefix       string `yaml:"prefix"`
	AccessKey    string `yaml:"accessKey"`
	SecretKey    string `yaml:"secretKey"`
	UseSSL       *bool  `yaml:"useSSL"`
	WriteAllowed bool   `yaml:"writeAllowed"`
}

// PhaseDTO represents a phase definition.
type PhaseDTO struct {
	Self          []string `yaml:"self"`
	Upstream      []string `yaml:"upstream"`
	AllowWarnings bool     `yaml:"allowWarnings"`
}

// ProjectDTO represents a project entry.
type ProjectDTO struct {
	Name          string            `yaml:"name"`
	Folder        string            `yaml:"folder"`
	DependsOn     []string          `yaml:"dependsOn"`
	OutputFolders []string          `yaml:"outputFolders"`
	Scripts       map[string]string `yaml:"scripts"`
	Persistent    []string          `yaml:"persistent"`
	DisableCache  []string          `yaml:"disableCache"`
	Environment   map[string]string `yaml:"environment"`
}
