package sandbox

import "sort"

// moduleTable lists the importable modules and the bindings each exports.
// Parent packages export nothing but their submodules.
var moduleTable = map[string][]string{
	"pptx":             {"Presentation"},
	"pptx.util":        {"Inches", "Pt", "Cm", "Mm", "Emu"},
	"pptx.dml":         nil,
	"pptx.dml.color":   {"RGBColor"},
	"pptx.enum":        nil,
	"pptx.enum.shapes": {"MSO_SHAPE", "MSO_AUTO_SHAPE_TYPE", "MSO_CONNECTOR", "MSO_CONNECTOR_TYPE"},
	"pptx.enum.text":   {"PP_ALIGN", "PP_PARAGRAPH_ALIGNMENT", "MSO_ANCHOR", "MSO_VERTICAL_ANCHOR", "MSO_AUTO_SIZE"},
	"pptx.enum.dml":    {"MSO_LINE", "MSO_LINE_DASH_STYLE", "MSO_FILL", "MSO_FILL_TYPE"},
	"pptx.chart":       nil,
	"pptx.chart.data":  {"CategoryChartData", "ChartData"},
	"pptx.enum.chart":  {"XL_CHART_TYPE"},
}

// AllowedModules lists every importable module path.
func AllowedModules() []string {
	out := make([]string, 0, len(moduleTable))
	for m := range moduleTable {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

func moduleAllowed(path string) bool {
	_, ok := moduleTable[path]
	return ok
}

func moduleExports(path string) []string {
	return moduleTable[path]
}

// exportModule reports which module exports name, preferring the most
// specific path.
func exportModule(name string) (string, bool) {
	best := ""
	for path, names := range moduleTable {
		for _, n := range names {
			if n == name && len(path) > len(best) {
				best = path
			}
		}
	}
	return best, best != ""
}

func lookupExport(path, name string) (Value, bool) {
	for _, n := range moduleTable[path] {
		if n == name {
			v, ok := bindings[name]
			return v, ok
		}
	}
	if sub := path + "." + name; moduleAllowed(sub) {
		return &ModuleRef{Path: sub}, true
	}
	return nil, false
}

func moduleAttr(m *ModuleRef, name string) (Value, bool) {
	return lookupExport(m.Path, name)
}
