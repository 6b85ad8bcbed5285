package constants

// Standard paths used by crewgen, relative to the project directory.
const (
	ConfigFile      = "crewgen.toml"
	EnvFile         = ".env"
	StateDir        = ".crewgen"
	ManifestFile    = ".crewgen/manifest.yaml"
	RunLockFile     = ".crewgen/run.lock"
	ProjectInfoDir  = "project_config"
	ProjectInfoFile = "project_config/project_info.json"
	RunLogFile      = "crewgen_execution.log"
)

// Stages lists the pipeline stages in execution order.
var Stages = []string{"architect", "developer", "tester", "readme"}

// StageRoles maps each stage to the role description handed to its agent.
var StageRoles = map[string]string{
	"architect": "Software Architect",
	"developer": "Senior Developer",
	"tester":    "QA Engineer",
	"readme":    "Technical Writer",
}
