package client

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/nxkit/nexon-openapi-client/pkg/cache"
)

// Identifier length bounds after normalization.
const (
	minIdentifierLen = 2
	maxIdentifierLen = 12
)

// dateLayout is the request date format the upstream accepts.
const dateLayout = "2006-01-02"

// earliestDataDate is the first date the upstream exposes data for.
var earliestDataDate = time.Date(2023, 12, 21, 0, 0, 0, 0, time.UTC)

// knownWorlds is the allow-list of world names, keyed by normalized form.
var knownWorlds = map[string]struct{}{
	"scania":   {},
	"bera":     {},
	"aurora":   {},
	"elysium":  {},
	"luna":     {},
	"kronos":   {},
	"hyperion": {},
	"solis":    {},
	"reboot":   {},
	"burning":  {},
}

// worldList returns the allow-list in stable order for requirement messages.
func worldList() string {
	names := make([]string, 0, len(knownWorlds))
	for name := range knownWorlds {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// diagnoseBadRequest inspects request parameters against the structural
// rules the upstream enforces and returns a specific ValidationFailed error
// for the first violated rule, or nil if no rule matches. Parameters are
// checked in a fixed order so classification stays deterministic.
func diagnoseBadRequest(params map[string]string, context map[string]string) *APIError {
	if world, ok := params["world_name"]; ok {
		if reason, bad := checkWorldName(world); bad {
			return validationError("world_name", world, reason, context)
		}
	}
	for _, field := range []string{"character_name", "guild_name"} {
		if name, ok := params[field]; ok {
			if reason, bad := checkIdentifier(name); bad {
				return validationError(field, name, reason, context)
			}
		}
	}
	if date, ok := params["date"]; ok {
		if reason, bad := checkDate(date, time.Now()); bad {
			return validationError("date", date, reason, context)
		}
	}
	return nil
}

// checkWorldName validates a world name against the allow-list.
func checkWorldName(world string) (reason string, bad bool) {
	if _, ok := knownWorlds[cache.NormalizeIdentifier(world)]; !ok {
		return "must be one of: " + worldList(), true
	}
	return "", false
}

// checkIdentifier validates a character or guild name: 2-12 characters
// after normalization, letters and digits only.
func checkIdentifier(name string) (reason string, bad bool) {
	normalized := cache.NormalizeIdentifier(name)
	n := len([]rune(normalized))
	if n < minIdentifierLen || n > maxIdentifierLen {
		return fmt.Sprintf("must be %d-%d characters long", minIdentifierLen, maxIdentifierLen), true
	}
	for _, r := range normalized {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return "must contain only letters and digits", true
		}
	}
	return "", false
}

// checkDate validates a request date: YYYY-MM-DD, within the range the
// upstream has data for.
func checkDate(date string, now time.Time) (reason string, bad bool) {
	parsed, err := time.Parse(dateLayout, date)
	if err != nil {
		return "must be formatted as YYYY-MM-DD", true
	}
	if parsed.Before(earliestDataDate) {
		return "must not be before " + earliestDataDate.Format(dateLayout), true
	}
	if parsed.After(now) {
		return "must not be in the future", true
	}
	return "", false
}

// validationError builds a ValidationFailed error naming the offending
// field, its (redacted if sensitive) value, and the requirement.
func validationError(field, value, requirement string, context map[string]string) *APIError {
	if sensitiveParam.MatchString(field) {
		value = redacted
	}
	err := newError(KindValidationFailed, "", 0, context)
	err.Field = field
	err.Message = fmt.Sprintf("invalid value %q for %s: %s", value, field, requirement)
	return err
}
