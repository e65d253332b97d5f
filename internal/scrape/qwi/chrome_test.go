package qwi

import (
	"strings"
	"testing"
)

// The metro wait must count visible boxes rather than wait on the first
// match, which after a reset is often a hidden box of another state.
func TestMetroScriptsOnlyCountVisibleBoxes(t *testing.T) {
	for name, js := range map[string]string{
		"visibleMetroCount":   visibleMetroCount,
		"selectVisibleMetros": selectVisibleMetros,
	} {
		if !strings.Contains(js, `"input[type='checkbox'][name='areas_list_M']"`) {
			t.Errorf("%s does not query the metro checkboxes: %s", name, js)
		}
		if !strings.Contains(js, "offsetParent !== null") {
			t.Errorf("%s does not skip hidden boxes: %s", name, js)
		}
		if !strings.Contains(js, "querySelectorAll") {
			t.Errorf("%s only looks at the first match: %s", name, js)
		}
	}
}
