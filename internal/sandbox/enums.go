package sandbox

import (
	"sort"

	"screendeck/internal/pptx"
)

// Enum is a read-only namespace of named members, e.g. MSO_SHAPE.
type Enum struct {
	Name    string
	Members map[string]*EnumMember
}

type EnumMember struct {
	Enum  string
	Name  string
	Value any
}

func (*Enum) TypeName() string { return "EnumMeta" }

func (e *Enum) GetAttr(name string) (Value, bool, error) {
	m, ok := e.Members[name]
	if !ok {
		return nil, false, nil
	}
	return m, true, nil
}

// Has reports whether name is a member.
func (e *Enum) Has(name string) bool {
	_, ok := e.Members[name]
	return ok
}

// Names lists member names in sorted order.
func (e *Enum) Names() []string {
	out := make([]string, 0, len(e.Members))
	for n := range e.Members {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (*EnumMember) TypeName() string { return "EnumMember" }

func (m *EnumMember) String() string { return m.Name }

func (m *EnumMember) GetAttr(name string) (Value, bool, error) {
	switch name {
	case "name":
		return m.Name, true, nil
	}
	return nil, false, nil
}

func newEnum[T any](name string, members map[string]T) *Enum {
	e := &Enum{Name: name, Members: make(map[string]*EnumMember, len(members))}
	for k, v := range members {
		e.Members[k] = &EnumMember{Enum: name, Name: k, Value: v}
	}
	return e
}

var autoShapes = newEnum("MSO_SHAPE", map[string]string{
	"RECTANGLE":                    "rect",
	"ROUNDED_RECTANGLE":            "roundRect",
	"SNIP_1_RECTANGLE":             "snip1Rect",
	"SNIP_2_SAME_RECTANGLE":        "snip2SameRect",
	"ROUND_1_RECTANGLE":            "round1Rect",
	"ROUND_2_SAME_RECTANGLE":       "round2SameRect",
	"OVAL":                         "ellipse",
	"ISOSCELES_TRIANGLE":           "triangle",
	"RIGHT_TRIANGLE":               "rtTriangle",
	"PARALLELOGRAM":                "parallelogram",
	"TRAPEZOID":                    "trapezoid",
	"DIAMOND":                      "diamond",
	"PENTAGON":                     "homePlate",
	"REGULAR_PENTAGON":             "pentagon",
	"HEXAGON":                      "hexagon",
	"HEPTAGON":                     "heptagon",
	"OCTAGON":                      "octagon",
	"DECAGON":                      "decagon",
	"DODECAGON":                    "dodecagon",
	"CHEVRON":                      "chevron",
	"CROSS":                        "plus",
	"FRAME":                        "frame",
	"HALF_FRAME":                   "halfFrame",
	"CORNER":                       "corner",
	"PLAQUE":                       "plaque",
	"CAN":                          "can",
	"CUBE":                         "cube",
	"BEVEL":                        "bevel",
	"DONUT":                        "donut",
	"NO_SYMBOL":                    "noSmoking",
	"BLOCK_ARC":                    "blockArc",
	"FOLDED_CORNER":                "foldedCorner",
	"SMILEY_FACE":                  "smileyFace",
	"HEART":                        "heart",
	"LIGHTNING_BOLT":               "lightningBolt",
	"SUN":                          "sun",
	"MOON":                         "moon",
	"CLOUD":                        "cloud",
	"ARC":                          "arc",
	"CHORD":                        "chord",
	"PIE":                          "pie",
	"TEAR":                         "teardrop",
	"WAVE":                         "wave",
	"DOUBLE_WAVE":                  "doubleWave",
	"LEFT_BRACKET":                 "leftBracket",
	"RIGHT_BRACKET":                "rightBracket",
	"LEFT_BRACE":                   "leftBrace",
	"RIGHT_BRACE":                  "rightBrace",
	"DOUBLE_BRACKET":               "bracketPair",
	"DOUBLE_BRACE":                 "bracePair",
	"RIGHT_ARROW":                  "rightArrow",
	"LEFT_ARROW":                   "leftArrow",
	"UP_ARROW":                     "upArrow",
	"DOWN_ARROW":                   "downArrow",
	"LEFT_RIGHT_ARROW":             "leftRightArrow",
	"UP_DOWN_ARROW":                "upDownArrow",
	"QUAD_ARROW":                   "quadArrow",
	"NOTCHED_RIGHT_ARROW":          "notchedRightArrow",
	"STRIPED_RIGHT_ARROW":          "stripedRightArrow",
	"BENT_ARROW":                   "bentArrow",
	"U_TURN_ARROW":                 "uturnArrow",
	"CIRCULAR_ARROW":               "circularArrow",
	"CURVED_RIGHT_ARROW":           "curvedRightArrow",
	"CURVED_LEFT_ARROW":            "curvedLeftArrow",
	"RIGHT_ARROW_CALLOUT":          "rightArrowCallout",
	"STAR_4_POINT":                 "star4",
	"STAR_5_POINT":                 "star5",
	"STAR_6_POINT":                 "star6",
	"STAR_7_POINT":                 "star7",
	"STAR_8_POINT":                 "star8",
	"STAR_10_POINT":                "star10",
	"STAR_12_POINT":                "star12",
	"STAR_16_POINT":                "star16",
	"STAR_24_POINT":                "star24",
	"STAR_32_POINT":                "star32",
	"EXPLOSION1":                   "irregularSeal1",
	"EXPLOSION2":                   "irregularSeal2",
	"RECTANGULAR_CALLOUT":          "wedgeRectCallout",
	"ROUNDED_RECTANGULAR_CALLOUT":  "wedgeRoundRectCallout",
	"OVAL_CALLOUT":                 "wedgeEllipseCallout",
	"CLOUD_CALLOUT":                "cloudCallout",
	"LINE_CALLOUT_1":               "borderCallout1",
	"LINE_CALLOUT_2":               "borderCallout2",
	"LINE_INVERSE":                 "lineInv",
	"FLOWCHART_PROCESS":            "flowChartProcess",
	"FLOWCHART_ALTERNATE_PROCESS":  "flowChartAlternateProcess",
	"FLOWCHART_DECISION":           "flowChartDecision",
	"FLOWCHART_DATA":               "flowChartInputOutput",
	"FLOWCHART_PREDEFINED_PROCESS": "flowChartPredefinedProcess",
	"FLOWCHART_DOCUMENT":           "flowChartDocument",
	"FLOWCHART_MULTIDOCUMENT":      "flowChartMultidocument",
	"FLOWCHART_TERMINATOR":         "flowChartTerminator",
	"FLOWCHART_PREPARATION":        "flowChartPreparation",
	"FLOWCHART_MANUAL_INPUT":       "flowChartManualInput",
	"FLOWCHART_CONNECTOR":          "flowChartConnector",
	"FLOWCHART_MAGNETIC_DISK":      "flowChartMagneticDisk",
	"FLOWCHART_DELAY":              "flowChartDelay",
})

var connectors = newEnum("MSO_CONNECTOR", map[string]string{
	"STRAIGHT": "line",
	"ELBOW":    "bentConnector3",
	"CURVE":    "curvedConnector3",
})

var alignments = newEnum("PP_ALIGN", map[string]pptx.Alignment{
	"LEFT":       pptx.AlignLeft,
	"CENTER":     pptx.AlignCenter,
	"RIGHT":      pptx.AlignRight,
	"JUSTIFY":    pptx.AlignJustify,
	"DISTRIBUTE": pptx.AlignDistribute,
})

var anchors = newEnum("MSO_ANCHOR", map[string]pptx.Anchor{
	"TOP":    pptx.AnchorTop,
	"MIDDLE": pptx.AnchorMiddle,
	"BOTTOM": pptx.AnchorBottom,
})

var autoSizes = newEnum("MSO_AUTO_SIZE", map[string]pptx.AutoSize{
	"NONE":              pptx.AutoSizeNone,
	"SHAPE_TO_FIT_TEXT": pptx.AutoSizeShapeToFit,
	"TEXT_TO_FIT_SHAPE": pptx.AutoSizeTextToFit,
})

var dashStyles = newEnum("MSO_LINE", map[string]string{
	"SOLID":         "solid",
	"DASH":          "dash",
	"DASH_DOT":      "dashDot",
	"DASH_DOT_DOT":  "lgDashDotDot",
	"LONG_DASH":     "lgDash",
	"LONG_DASH_DOT": "lgDashDot",
	"ROUND_DOT":     "sysDot",
	"SQUARE_DOT":    "sysDash",
})

// fillTypes mirrors the fill type codes. Only SOLID and BACKGROUND can be
// produced by the builder.
var fillTypes = newEnum("MSO_FILL", map[string]int{
	"SOLID":      1,
	"PATTERNED":  2,
	"GRADIENT":   3,
	"TEXTURED":   4,
	"BACKGROUND": 5,
	"PICTURE":    6,
	"GROUP":      101,
})

var chartTypes = newEnum("XL_CHART_TYPE", map[string]pptx.ChartKind{
	"COLUMN_CLUSTERED": pptx.ChartColumnClustered,
	"COLUMN_STACKED":   pptx.ChartColumnStacked,
	"BAR_CLUSTERED":    pptx.ChartBarClustered,
	"BAR_STACKED":      pptx.ChartBarStacked,
	"LINE":             pptx.ChartLine,
	"LINE_MARKERS":     pptx.ChartLineMarkers,
	"PIE":              pptx.ChartPie,
	"DOUGHNUT":         pptx.ChartDoughnut,
	"AREA":             pptx.ChartArea,
})

// enums indexes every enum by its bound names, aliases included.
var enums = map[string]*Enum{
	"MSO_SHAPE":              autoShapes,
	"MSO_AUTO_SHAPE_TYPE":    autoShapes,
	"MSO_CONNECTOR":          connectors,
	"MSO_CONNECTOR_TYPE":     connectors,
	"PP_ALIGN":               alignments,
	"PP_PARAGRAPH_ALIGNMENT": alignments,
	"MSO_ANCHOR":             anchors,
	"MSO_VERTICAL_ANCHOR":    anchors,
	"MSO_AUTO_SIZE":          autoSizes,
	"MSO_LINE":               dashStyles,
	"MSO_LINE_DASH_STYLE":    dashStyles,
	"MSO_FILL":               fillTypes,
	"MSO_FILL_TYPE":          fillTypes,
	"XL_CHART_TYPE":          chartTypes,
}

func fillTypeMember(k pptx.FillKind) Value {
	switch k {
	case pptx.FillSolid:
		return fillTypes.Members["SOLID"]
	case pptx.FillNone:
		return fillTypes.Members["BACKGROUND"]
	}
	return None
}
