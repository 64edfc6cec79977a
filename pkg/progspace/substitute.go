package progspace

import "strings"

// SubstitutePath applies the specified path substitution rules to path.
// The first rule whose From is a directory prefix of path (or equal to
// it) is used; an empty From matches every relative path. Paths that look
// like Windows paths are compared case insensitively.
func SubstitutePath(path string, rules [][2]string) string {
	caseInsensitive := windowsAbsPath(path)
	for _, r := range rules {
		if windowsAbsPath(r[0]) || windowsAbsPath(r[1]) {
			caseInsensitive = true
		}
	}

	for _, r := range rules {
		from, to := r[0], r[1]
		if path == from || (caseInsensitive && strings.EqualFold(path, from)) {
			return to
		}
		var rest string
		if from == "" {
			if isAbs(path) {
				continue
			}
			rest = path
		} else {
			if !hasPrefix(path, from, caseInsensitive) {
				continue
			}
			rest = path[len(from):]
			if !hasSeparatorSuffix(from) && !hasSeparatorPrefix(rest) {
				continue
			}
		}
		rest = strings.TrimLeft(rest, `/\`)
		if to == "" {
			return rest
		}
		return joinPath(to, rest)
	}
	return path
}

func hasPrefix(path, prefix string, caseInsensitive bool) bool {
	if caseInsensitive {
		return len(path) >= len(prefix) && strings.EqualFold(path[:len(prefix)], prefix)
	}
	return strings.HasPrefix(path, prefix)
}

func isSeparator(ch byte) bool {
	return ch == '/' || ch == '\\'
}

func hasSeparatorSuffix(s string) bool {
	return s != "" && isSeparator(s[len(s)-1])
}

func hasSeparatorPrefix(s string) bool {
	return s != "" && isSeparator(s[0])
}

func windowsAbsPath(path string) bool {
	return len(path) >= 3 && isAlpha(path[0]) && path[1] == ':' && isSeparator(path[2])
}

func isAbs(path string) bool {
	return hasSeparatorPrefix(path) || windowsAbsPath(path)
}

func isAlpha(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

// joinPath joins to and rest using the separator to uses.
func joinPath(to, rest string) string {
	if rest == "" {
		return to
	}
	sep := "/"
	if strings.Contains(to, `\`) || (!strings.Contains(to, "/") && strings.Contains(rest, `\`)) {
		sep = `\`
	}
	if sep == "/" {
		rest = strings.ReplaceAll(rest, `\`, "/")
	} else {
		rest = strings.ReplaceAll(rest, "/", `\`)
	}
	return strings.TrimRight(to, `/\`) + sep + rest
}
