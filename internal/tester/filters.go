package tester

// ApplyFilters narrows suites by suite pattern, cases by case pattern, then
// by required tags (all must match, on either the suite or the case). Suites
// left with no cases are dropped.
func ApplyFilters(suites []LoadedSuite, filters FilterInput) []LoadedSuite {
	suitePattern := filters.SuitePattern
	if suitePattern == "" {
		suitePattern = "*"
	}
	casePattern := filters.CasePattern
	if casePattern == "" {
		casePattern = "*"
	}

	var out []LoadedSuite
	for _, suite := range suites {
		name := suite.Spec.Name
		if name == "" {
			name = suite.Path
		}
		if !globMatch(suitePattern, name) && !globMatch(suitePattern, suite.Path) {
			continue
		}

		var cases []CaseSpec
		for _, c := range suite.Spec.Cases {
			if !globMatch(casePattern, c.Name) {
				continue
			}
			if !hasAllTags(filters.Tags, suite.Spec.Tags, c.Tags) {
				continue
			}
			cases = append(cases, c)
		}
		if len(cases) == 0 {
			continue
		}
		suite.Spec.Cases = cases
		out = append(out, suite)
	}
	return out
}

func hasAllTags(required, suiteTags, caseTags []string) bool {
	for _, tag := range required {
		if !containsString(suiteTags, tag) && !containsString(caseTags, tag) {
			return false
		}
	}
	return true
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

// globMatch matches text against a pattern where '*' spans any run of
// characters and '?' exactly one.
func globMatch(pattern, text string) bool {
	p := []rune(pattern)
	t := []rune(text)

	dp := make([][]bool, len(p)+1)
	for i := range dp {
		dp[i] = make([]bool, len(t)+1)
	}
	dp[0][0] = true
	for i := 1; i <= len(p); i++ {
		if p[i-1] == '*' {
			dp[i][0] = dp[i-1][0]
		}
	}

	for i := 1; i <= len(p); i++ {
		for j := 1; j <= len(t); j++ {
			switch {
			case p[i-1] == '*':
				dp[i][j] = dp[i-1][j] || dp[i][j-1]
			case p[i-1] == '?' || p[i-1] == t[j-1]:
				dp[i][j] = dp[i-1][j-1]
			}
		}
	}
	return dp[len(p)][len(t)]
}
