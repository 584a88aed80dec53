package codegen

import (
	"fmt"
	"strings"

	"screendeck/internal/sandbox"
)

// userPrompt accompanies the screenshot on the first attempt.
const userPrompt = "Rebuild this screenshot including ALL shapes and text elements with exact positioning:"

var scriptPrompt = buildScriptPrompt()

func buildScriptPrompt() string {
	var b strings.Builder
	b.WriteString("You are a PowerPoint reconstruction AI. Generate COMPLETE Python code to recreate ALL elements from the screenshot.\n\n")
	b.WriteString("STRICT REQUIREMENTS:\n")
	b.WriteString("1. Output exactly one function with this structure, in a single ```python fenced block:\n")
	b.WriteString("def " + sandbox.EntryPoint + "():\n")
	b.WriteString("    prs = Presentation()\n")
	b.WriteString("    slide = prs.slides.add_slide(prs.slide_layouts[6])\n")
	b.WriteString("    # Add elements here\n")
	b.WriteString("    return prs\n\n")
	b.WriteString("2. For ALL visual elements:\n")
	b.WriteString("   - Text boxes: preserve exact content, formatting, and position\n")
	b.WriteString("   - Shapes: recreate rectangles and ovals using slide.shapes.add_shape()\n")
	b.WriteString("   - Lines and arrows: slide.shapes.add_connector(MSO_CONNECTOR.STRAIGHT, x1, y1, x2, y2)\n")
	b.WriteString("   - Position: use Inches() with exact measurements\n")
	b.WriteString("   - Styling: match fill and line colors, line weights, and dash styles\n\n")
	b.WriteString("3. Shape handling rules:\n")
	b.WriteString("   - Rectangles: MSO_SHAPE.RECTANGLE\n")
	b.WriteString("   - Ovals: MSO_SHAPE.OVAL\n")
	b.WriteString("   - Set fill: shape.fill.solid(), shape.fill.fore_color.rgb = RGBColor(r, g, b)\n")
	b.WriteString("   - Set line: shape.line.color.rgb, shape.line.width = Pt(n), shape.line.dash_style = MSO_LINE.DASH\n")
	b.WriteString("   - Text: tf = shape.text_frame; p = tf.paragraphs[0]; run = p.add_run(); run.font.size = Pt(n)\n")
	b.WriteString("   - To embed the screenshot itself use slide.shapes.add_picture(SOURCE_IMAGE, left, top, width)\n\n")
	b.WriteString("4. Allowed imports: ")
	b.WriteString(strings.Join(sandbox.AllowedModules(), ", "))
	b.WriteString(". Nothing else may be imported.\n")
	b.WriteString("   Only use add_slide(), add_shape(), add_textbox(), add_connector(), add_picture(), add_table(), add_chart().\n\n")
	b.WriteString("5. Prohibited:\n")
	b.WriteString("   - Omitted elements, approximate positioning, color approximations\n")
	for _, f := range sandbox.Forbidden {
		fmt.Fprintf(&b, "   - DO NOT use .%s(); it is NOT supported\n", f)
	}
	b.WriteString("   - No file or network access, no prs.save(), no while loops, lambdas, classes, comprehensions or f-strings\n")
	return b.String()
}

const macroPrompt = "You are a PowerPoint VBA generator. Your task is to reconstruct the provided slide image " +
	"as valid VBA code. Generate exactly one Sub named CreatePresentation(), closed by End Sub, that:\n" +
	" 1. Uses the active PowerPoint application and presentation.\n" +
	" 2. Adds a title slide (ppLayoutTitle) and sets the title text.\n" +
	" 3. Inserts all shapes and lines using only:\n" +
	"    - Set shp = slide.Shapes.AddShape(Type, Left, Top, Width, Height)\n" +
	"    - Set shp = slide.Shapes.AddLine(BeginX, BeginY, EndX, EndY)\n" +
	"    - Set shp = slide.Shapes.AddTextbox(Orientation, Left, Top, Width, Height)\n" +
	"   Never call these methods without `Set` or `Call`.\n" +
	" 4. For arrowheads use `shp.Line.EndArrowheadStyle = msoArrowheadTriangle`.\n" +
	" 5. Set text via `shp.TextFrame.TextRange.Text = ...`.\n" +
	" 6. Use only Microsoft methods (Slides.Add, Shapes.AddShape, Shapes.AddLine, Shapes.AddTextbox).\n" +
	" 7. Use fixed point coordinates; do not use freeform shapes.\n" +
	"Output only the VBA code in a ```vb ... ``` block without any extra explanation."

// strictAmendment is appended to the user text on the single retry.
func strictAmendment(m Mode) string {
	if m == ModeMacro {
		return "\n\nYour previous answer contained no usable code. Reply with ONLY one ```vb fenced block " +
			"containing Sub CreatePresentation() ... End Sub. No prose before or after the block."
	}
	return "\n\nYour previous answer contained no usable code. Reply with ONLY one ```python fenced block " +
		"defining " + sandbox.EntryPoint + "() that returns prs. No prose before or after the block."
}

func refinePrompt(m Mode, code string) string {
	fence := "python"
	if m == ModeMacro {
		fence = "vb"
	}
	return "Improve the visual polish of the following code so the slide matches the screenshot more closely. " +
		"Do not change content or logic, only aesthetics (colors, spacing, font sizes, alignment). " +
		"Keep every allowed operation and restriction from the instructions. " +
		"Return the complete code in a single ```" + fence + " fenced block.\n\n```" + fence + "\n" + code + "\n```"
}
