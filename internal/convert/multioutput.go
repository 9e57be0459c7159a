package convert

import "fmt"

// upgradeMultiOutput is C9 step 10: for a multi-output recipe (one with
// an /outputs section), rename the top-level /package section to
// /recipe, and nest each output's name/version under its own
// /outputs/i/package (spec.md Sec. 4.8 point 10). Single-output
// recipes keep /package.
func (c *Converter) upgradeMultiOutput() {
	outputsPath := parsePath("/outputs")
	id, ok := c.p.Tree.Find(outputsPath)
	if !ok {
		return
	}
	c.renamePath("/package", "/recipe")

	count := len(c.p.Tree.Node(id).Children)
	for i := 0; i < count; i++ {
		base := fmt.Sprintf("/outputs/%d", i)
		c.renamePath(base+"/name", base+"/package/name")
		c.renamePath(base+"/version", base+"/package/version")
	}
}
