package findings

// rule is the catalog entry used to fill in severity and WCAG criterion
// when the audit omits them. Rule IDs follow axe-core naming.
type rule struct {
	severity Severity
	wcag     string
}

var ruleCatalog = map[string]rule{
	"image-alt":            {SeverityCritical, "1.1.1"},
	"input-image-alt":      {SeverityCritical, "1.1.1"},
	"area-alt":             {SeverityCritical, "1.1.1"},
	"button-name":          {SeverityCritical, "4.1.2"},
	"link-name":            {SeverityCritical, "4.1.2"},
	"label":                {SeverityCritical, "4.1.2"},
	"select-name":          {SeverityCritical, "4.1.2"},
	"frame-title":          {SeverityCritical, "4.1.2"},
	"video-caption":        {SeverityCritical, "1.2.2"},
	"meta-refresh":         {SeverityCritical, "2.2.1"},
	"color-contrast":       {SeveritySerious, "1.4.3"},
	"html-has-lang":        {SeveritySerious, "3.1.1"},
	"html-lang-valid":      {SeveritySerious, "3.1.1"},
	"valid-lang":           {SeveritySerious, "3.1.2"},
	"document-title":       {SeveritySerious, "2.4.2"},
	"meta-viewport":        {SeveritySerious, "1.4.4"},
	"list":                 {SeveritySerious, "1.3.1"},
	"listitem":             {SeveritySerious, "1.3.1"},
	"definition-list":      {SeveritySerious, "1.3.1"},
	"th-has-data-cells":    {SeveritySerious, "1.3.1"},
	"td-headers-attr":      {SeveritySerious, "1.3.1"},
	"duplicate-id-aria":    {SeveritySerious, "4.1.1"},
	"aria-required-attr":   {SeveritySerious, "4.1.2"},
	"aria-valid-attr":      {SeveritySerious, "4.1.2"},
	"aria-roles":           {SeveritySerious, "4.1.2"},
	"tabindex":             {SeveritySerious, "2.1.1"},
	"blink":                {SeveritySerious, "2.2.2"},
	"marquee":              {SeveritySerious, "2.2.2"},
	"heading-order":        {SeverityModerate, "1.3.1"},
	"empty-heading":        {SeverityModerate, "1.3.1"},
	"landmark-one-main":    {SeverityModerate, "1.3.1"},
	"region":               {SeverityModerate, "1.3.1"},
	"page-has-heading-one": {SeverityModerate, "1.3.1"},
	"skip-link":            {SeverityModerate, "2.4.1"},
	"accesskeys":           {SeverityMinor, "2.1.1"},
}

// Classify fills in a finding's severity and WCAG criterion from the rule
// catalog when the audit left them blank. Unknown rules default to moderate.
func Classify(f *Finding) {
	entry, known := ruleCatalog[f.RuleID]
	if f.Severity == "" {
		if known {
			f.Severity = entry.severity
		} else {
			f.Severity = SeverityModerate
		}
	}
	if f.WCAG == "" && known {
		f.WCAG = entry.wcag
	}
}

// KnownRule reports whether a rule ID is in the catalog.
func KnownRule(ruleID string) bool {
	_, ok := ruleCatalog[ruleID]
	return ok
}
