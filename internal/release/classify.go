package release

import "strings"

// Classify derives the release type, and for slug deployments the commit
// reference, from a platform release description. Rules are evaluated in
// order, case-insensitively, first match wins. Pure and total over non-empty
// strings: unmatched descriptions classify as TypeOther, never an error.
func Classify(description string) (Type, string, error) {
	if description == "" {
		return TypeOther, "", &ValidationError{Reason: "missing description"}
	}
	lower := strings.ToLower(description)
	switch {
	case strings.HasPrefix(lower, "deploy"):
		return TypeDeployment, commitFromDescription(description), nil
	case strings.HasPrefix(lower, "promote"):
		// the commit for a promotion comes from the slug, not the description
		return TypePromotion, "", nil
	case strings.HasPrefix(lower, "rollback"):
		return TypeRollback, "", nil
	case strings.HasSuffix(lower, "config vars"), strings.HasPrefix(lower, "update"):
		return TypeEnvVars, "", nil
	case strings.HasPrefix(lower, "add"),
		strings.HasPrefix(lower, "attach"),
		strings.HasPrefix(lower, "detach"),
		strings.HasSuffix(lower, "add-on"):
		return TypeAddOn, "", nil
	}
	return TypeOther, "", nil
}

// commitFromDescription extracts the commit hash from a "Deploy <hash>"
// description. Only the exact "deploy" action carries a commit; variants
// like "Deployed" do not.
func commitFromDescription(description string) string {
	action, commit, found := strings.Cut(description, " ")
	if !found {
		return ""
	}
	if strings.EqualFold(action, "deploy") {
		return commit
	}
	return ""
}
