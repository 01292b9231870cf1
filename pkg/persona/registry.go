package persona

// Persona type name constants. The matcher's keyword policy keys off the
// architect and QA types.
const (
	TypeSoftwareArchitect       = "software-architect"
	TypeQATestEngineer          = "qa-test-engineer"
	TypeSecurityEngineer        = "security-engineer"
	TypeDevSecOpsEngineer       = "devsecops-engineer"
	TypeBackendDeveloper        = "backend-developer"
	TypeFrontendDeveloper       = "frontend-developer"
	TypeCloudArchitect          = "cloud-architect"
	TypeDataEngineer            = "data-engineer"
	TypeSiteReliabilityEngineer = "site-reliability-engineer"
	TypeTechnicalWriter         = "technical-writer"
	TypeProductOwner            = "product-owner"
	TypeBusinessAnalyst         = "business-analyst"
)

// Directory maps a persona type name to its declared capability profile.
// The dispatcher treats this as read-only.
type Directory interface {
	Capabilities(personaType string) (map[string]struct{}, error)
}

// Profile is the static configuration record for one persona type.
type Profile struct {
	PersonaType string   `json:"persona_type"`
	DisplayName string   `json:"display_name"`
	Description string   `json:"description"`
	Skills      []string `json:"skills"`
}

// Registry is the built-in read-only persona type directory.
type Registry struct {
	profiles map[string]*Profile
}

// NewRegistry returns the directory populated with the built-in catalog.
func NewRegistry() *Registry {
	r := &Registry{profiles: make(map[string]*Profile)}
	for i := range builtinCatalog {
		p := &builtinCatalog[i]
		r.profiles[p.PersonaType] = p
	}
	return r
}

// Capabilities returns the declared skill set for a persona type.
func (r *Registry) Capabilities(personaType string) (map[string]struct{}, error) {
	profile, ok := r.profiles[personaType]
	if !ok {
		return nil, &UnknownTypeError{PersonaType: personaType}
	}
	caps := make(map[string]struct{}, len(profile.Skills))
	for _, skill := range profile.Skills {
		caps[skill] = struct{}{}
	}
	return caps, nil
}

// Profile returns the full static record for a persona type.
func (r *Registry) Profile(personaType string) (*Profile, bool) {
	profile, ok := r.profiles[personaType]
	return profile, ok
}

// ListTypes returns all registered persona type names.
func (r *Registry) ListTypes() []string {
	types := make([]string, 0, len(r.profiles))
	for name := range r.profiles {
		types = append(types, name)
	}
	return types
}

//nolint:gochecknoglobals // Static catalog data
var builtinCatalog = []Profile{
	{
		PersonaType: TypeSoftwareArchitect,
		DisplayName: "Software Architect",
		Description: "Designs system architecture, creates technical specifications, and ensures architectural consistency",
		Skills: []string{
			"microservices architecture design",
			"security architecture and compliance",
			"api design and management",
			"event-driven architecture",
			"distributed systems design",
			"database architecture",
			"technical documentation",
		},
	},
	{
		PersonaType: TypeQATestEngineer,
		DisplayName: "QA/Test Engineer",
		Description: "Designs test strategies, writes automated tests, and performs security and regression testing",
		Skills: []string{
			"test strategy and planning",
			"automated test frameworks",
			"security testing",
			"performance and load testing",
			"regression analysis",
			"defect triage",
		},
	},
	{
		PersonaType: TypeSecurityEngineer,
		DisplayName: "Security Engineer",
		Description: "Performs threat modeling, vulnerability assessment, and security hardening",
		Skills: []string{
			"threat modeling",
			"vulnerability assessment",
			"penetration testing",
			"security monitoring",
			"incident response",
		},
	},
	{
		PersonaType: TypeDevSecOpsEngineer,
		DisplayName: "DevSecOps Engineer",
		Description: "Integrates security into CI/CD pipelines and infrastructure automation",
		Skills: []string{
			"ci/cd pipeline security",
			"infrastructure as code",
			"container security",
			"secrets management",
			"compliance automation",
		},
	},
	{
		PersonaType: TypeBackendDeveloper,
		DisplayName: "Backend Developer",
		Description: "Implements server-side services, APIs, and data access layers",
		Skills: []string{
			"rest api implementation",
			"database design and queries",
			"message queue integration",
			"caching strategies",
			"unit testing",
		},
	},
	{
		PersonaType: TypeFrontendDeveloper,
		DisplayName: "Frontend Developer",
		Description: "Builds user interfaces and client-side application logic",
		Skills: []string{
			"component-based ui development",
			"state management",
			"responsive design",
			"accessibility",
			"browser performance tuning",
		},
	},
	{
		PersonaType: TypeCloudArchitect,
		DisplayName: "Cloud Architect",
		Description: "Designs cloud infrastructure, networking, and cost optimization strategies",
		Skills: []string{
			"cloud platform design",
			"networking and vpc design",
			"cost optimization",
			"disaster recovery planning",
			"identity and access management",
		},
	},
	{
		PersonaType: TypeDataEngineer,
		DisplayName: "Data Engineer",
		Description: "Builds data pipelines, storage layers, and analytics infrastructure",
		Skills: []string{
			"etl pipeline design",
			"data modeling",
			"stream processing",
			"data quality validation",
			"warehouse optimization",
		},
	},
	{
		PersonaType: TypeSiteReliabilityEngineer,
		DisplayName: "Site Reliability Engineer",
		Description: "Keeps services reliable through monitoring, alerting, and capacity planning",
		Skills: []string{
			"observability and monitoring",
			"incident management",
			"capacity planning",
			"chaos testing",
			"slo definition",
		},
	},
	{
		PersonaType: TypeTechnicalWriter,
		DisplayName: "Technical Writer",
		Description: "Produces developer documentation, runbooks, and release notes",
		Skills: []string{
			"api documentation",
			"runbook authoring",
			"information architecture",
			"editing and style",
		},
	},
	{
		PersonaType: TypeProductOwner,
		DisplayName: "Product Owner",
		Description: "Prioritizes the backlog and clarifies acceptance criteria",
		Skills: []string{
			"backlog prioritization",
			"acceptance criteria definition",
			"stakeholder communication",
			"roadmap planning",
		},
	},
	{
		PersonaType: TypeBusinessAnalyst,
		DisplayName: "Business Analyst",
		Description: "Gathers requirements and translates business needs into specifications",
		Skills: []string{
			"requirements elicitation",
			"process modeling",
			"gap analysis",
			"user story writing",
		},
	},
}
