// Package analyzer derives business scenarios and endpoint relations from an
// endpoint list. Everything here is a pure function of its inputs.
package analyzer

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"api-testgen/internal/types"
)

const (
	// AuthConfidence is the baseline confidence of an inferred auth relation
	AuthConfidence = 0.8
	// SecuredAuthConfidence applies when the endpoint declares a security requirement
	SecuredAuthConfidence = 0.95
	// DataConfidence applies to create -> item relations inside a resource
	DataConfidence = 0.7
	// SequenceConfidence applies to login -> logout relations
	SequenceConfidence = 0.6

	AuthScenarioID         = "scn-auth"
	resourceScenarioPrefix = "scn-resource-"
)

var (
	authSegments = map[string]bool{
		"auth": true, "login": true, "logout": true, "signin": true, "signout": true,
		"signup": true, "register": true, "token": true, "tokens": true,
		"oauth": true, "oauth2": true, "session": true, "sessions": true,
	}
	loginSegments  = map[string]bool{"login": true, "signin": true, "token": true, "tokens": true, "session": true, "sessions": true}
	logoutSegments = map[string]bool{"logout": true, "signout": true}

	versionSegment = regexp.MustCompile(`^v[0-9]+(\.[0-9]+)*$`)
	nonSlug        = regexp.MustCompile(`[^a-z0-9]+`)
)

// Result holds merged scenarios and relations: fresh auto entries first, then
// the retained custom ones in their previous order
type Result struct {
	Scenarios []types.Scenario
	Relations []types.Relation
}

// Infer partitions endpoints into scenarios, derives relations between them and
// merges the custom entries of the previous state back in
func Infer(endpoints []types.Endpoint, existingScenarios []types.Scenario, existingRelations []types.Relation) Result {
	scenarios := inferScenarios(endpoints)
	relations := inferRelations(endpoints)

	// custom ids are kept as they are; inferred ids yield to them
	ids := make(map[string]bool)
	for _, s := range existingScenarios {
		if s.IsCustom {
			ids[s.ID] = true
		}
	}
	for _, r := range existingRelations {
		if r.IsCustom {
			ids[r.ID] = true
		}
	}

	for i := range scenarios {
		scenarios[i].ID = uniqueID(ids, scenarios[i].ID)
	}
	for i := range relations {
		relations[i].ID = uniqueID(ids, relations[i].ID)
	}

	for _, s := range existingScenarios {
		if s.IsCustom {
			scenarios = append(scenarios, s)
		}
	}
	for _, r := range existingRelations {
		if r.IsCustom {
			relations = append(relations, r)
		}
	}

	return Result{Scenarios: scenarios, Relations: relations}
}

// IsAuthEndpoint reports whether the endpoint looks like part of an authentication flow
func IsAuthEndpoint(e types.Endpoint) bool {
	for _, seg := range segments(e.Path) {
		if authSegments[seg] {
			return true
		}
	}
	for _, tag := range e.Tags {
		if strings.Contains(strings.ToLower(tag), "auth") {
			return true
		}
	}
	return false
}

// ResourceOf returns the leading resource segment of a path, skipping an api
// prefix and version segments. The root path yields "root".
func ResourceOf(path string) string {
	for _, seg := range segments(path) {
		if seg == "api" || versionSegment.MatchString(seg) || isParam(seg) {
			continue
		}
		return seg
	}
	return "root"
}

func inferScenarios(endpoints []types.Endpoint) []types.Scenario {
	var scenarios []types.Scenario
	if len(endpoints) == 0 {
		return scenarios
	}

	var auth []types.EndpointRef
	buckets := make(map[string][]types.Endpoint)
	var order []string

	for _, e := range endpoints {
		if IsAuthEndpoint(e) {
			auth = append(auth, e.Ref())
			continue
		}
		resource := ResourceOf(e.Path)
		if _, ok := buckets[resource]; !ok {
			order = append(order, resource)
		}
		buckets[resource] = append(buckets[resource], e)
	}

	if len(auth) > 0 {
		scenarios = append(scenarios, types.Scenario{
			ID:          AuthScenarioID,
			Name:        "Authentication flow",
			Description: "Endpoints that issue, use or revoke credentials",
			Type:        types.ScenarioNormal,
			Endpoints:   auth,
		})
	}

	for _, resource := range order {
		members := buckets[resource]
		sort.SliceStable(members, func(i, j int) bool {
			return crudRank(members[i]) < crudRank(members[j])
		})
		refs := make([]types.EndpointRef, len(members))
		for i, e := range members {
			refs[i] = e.Ref()
		}
		scenarios = append(scenarios, types.Scenario{
			ID:          resourceScenarioPrefix + slug(resource),
			Name:        fmt.Sprintf("%s resource flow", resource),
			Description: fmt.Sprintf("Create, read, update and delete operations on /%s", resource),
			Type:        types.ScenarioNormal,
			Endpoints:   refs,
		})
	}

	return scenarios
}

func inferRelations(endpoints []types.Endpoint) []types.Relation {
	var relations []types.Relation
	if len(endpoints) == 0 {
		return relations
	}

	var authTarget *types.Endpoint
	for i := range endpoints {
		if IsAuthEndpoint(endpoints[i]) {
			authTarget = &endpoints[i]
			break
		}
	}

	if authTarget != nil {
		for _, e := range endpoints {
			if IsAuthEndpoint(e) || e.Security == types.SecurityNone {
				continue
			}
			confidence := AuthConfidence
			if e.Security == types.SecurityRequired {
				confidence = SecuredAuthConfidence
			}
			relations = append(relations, newRelation(types.RelationAuth, e.Ref(), authTarget.Ref(), confidence,
				fmt.Sprintf("%s requires credentials obtained from %s", e.Key(), authTarget.Key())))
		}
		relations = append(relations, sequenceRelations(endpoints)...)
	}

	relations = append(relations, dataRelations(endpoints)...)
	return relations
}

// dataRelations links a collection create to the item endpoints whose path extends it
func dataRelations(endpoints []types.Endpoint) []types.Relation {
	var relations []types.Relation
	for _, creator := range endpoints {
		if creator.Method != types.MethodPost || IsAuthEndpoint(creator) {
			continue
		}
		prefix := strings.TrimRight(creator.Path, "/") + "/"
		for _, e := range endpoints {
			if e.Key() == creator.Key() || !strings.HasPrefix(e.Path, prefix) {
				continue
			}
			next := strings.SplitN(strings.TrimPrefix(e.Path, prefix), "/", 2)[0]
			if !isParam(next) {
				continue
			}
			relations = append(relations, newRelation(types.RelationData, creator.Ref(), e.Ref(), DataConfidence,
				fmt.Sprintf("%s creates the resource addressed by %s", creator.Key(), e.Key())))
		}
	}
	return relations
}

// sequenceRelations orders login-like endpoints before logout-like ones
func sequenceRelations(endpoints []types.Endpoint) []types.Relation {
	var logins, logouts []types.Endpoint
	for _, e := range endpoints {
		if !IsAuthEndpoint(e) {
			continue
		}
		for _, seg := range segments(e.Path) {
			if loginSegments[seg] && e.Method == types.MethodPost {
				logins = append(logins, e)
				break
			}
			if logoutSegments[seg] {
				logouts = append(logouts, e)
				break
			}
		}
	}

	var relations []types.Relation
	for _, in := range logins {
		for _, out := range logouts {
			if in.Key() == out.Key() {
				continue
			}
			relations = append(relations, newRelation(types.RelationSequence, in.Ref(), out.Ref(), SequenceConfidence,
				fmt.Sprintf("%s must happen before %s", in.Key(), out.Key())))
		}
	}
	return relations
}

func newRelation(kind types.RelationType, source, target types.EndpointRef, confidence float64, description string) types.Relation {
	return types.Relation{
		ID:          fmt.Sprintf("rel-%s-%s-%s", kind, slug(source.Key()), slug(target.Key())),
		Source:      source,
		Target:      target,
		Type:        kind,
		Description: description,
		Confidence:  confidence,
	}
}

// uniqueID returns id, or the first free "{id}-{n}" when id is taken
func uniqueID(taken map[string]bool, id string) string {
	candidate := id
	for n := 2; taken[candidate]; n++ {
		candidate = fmt.Sprintf("%s-%d", id, n)
	}
	taken[candidate] = true
	return candidate
}

func crudRank(e types.Endpoint) int {
	segs := segments(e.Path)
	item := len(segs) > 0 && isParam(segs[len(segs)-1])
	switch e.Method {
	case types.MethodPost:
		return 0
	case types.MethodGet:
		if item {
			return 2
		}
		return 1
	case types.MethodPut, types.MethodPatch:
		return 3
	case types.MethodDelete:
		return 5
	default:
		return 4
	}
}

func segments(path string) []string {
	var out []string
	for _, seg := range strings.Split(strings.ToLower(path), "/") {
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

func isParam(seg string) bool {
	return strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}")
}

func slug(s string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "-"), "-")
}
