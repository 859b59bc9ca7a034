package browser

import (
	"encoding/json"
	"fmt"

	"github.com/jakopako/uiverify/internal/types"
)

const (
	markerAttr     = "data-uiverify-target"
	markerSelector = "[" + markerAttr + "]"
)

// finderJS looks up the first visible element for a locator. Text is
// matched case-insensitively on whitespace-normalised innerText and the
// innermost matching element wins. If mark is set the element gets the
// marker attribute so that it can be queried with markerSelector.
const finderJS = `(function(kind, value, mark) {
	const norm = s => (s || '').replace(/\s+/g, ' ').trim().toLowerCase();
	const visible = el => {
		const style = window.getComputedStyle(el);
		return el.getClientRects().length > 0 && style.visibility !== 'hidden' && style.display !== 'none';
	};
	document.querySelectorAll('[` + markerAttr + `]').forEach(el => el.removeAttribute('` + markerAttr + `'));
	let found = null;
	if (kind === 'css') {
		for (const el of document.querySelectorAll(value)) {
			if (visible(el)) { found = el; break; }
		}
	} else if (kind === 'placeholder') {
		for (const el of document.querySelectorAll('[placeholder]')) {
			if (el.getAttribute('placeholder') === value && visible(el)) { found = el; break; }
		}
	} else {
		const want = norm(value);
		const all = document.body ? document.body.querySelectorAll('*') : [];
		for (const el of all) {
			if (!visible(el) || !norm(el.innerText).includes(want)) continue;
			let deeper = false;
			for (const child of el.children) {
				if (visible(child) && norm(child.innerText).includes(want)) { deeper = true; break; }
			}
			if (!deeper) { found = el; break; }
		}
	}
	if (found === null) return false;
	if (mark) found.setAttribute('` + markerAttr + `', '1');
	return true;
})(%s, %s, %t)`

const selectMarkedJS = `(function() {
	const el = document.querySelector('` + markerSelector + `');
	if (el && typeof el.select === 'function') el.select();
})()`

// clearMarkedJS empties the marked field through the native value setter
// so that frameworks listening for input events pick up the change.
const clearMarkedJS = `(function() {
	const el = document.querySelector('` + markerSelector + `');
	if (!el) return;
	const proto = Object.getPrototypeOf(el);
	const desc = Object.getOwnPropertyDescriptor(proto, 'value');
	if (desc && desc.set) { desc.set.call(el, ''); } else { el.value = ''; }
	el.dispatchEvent(new Event('input', { bubbles: true }));
})()`

func findScript(loc types.Locator, mark bool) (string, error) {
	kind, err := json.Marshal(string(loc.Kind))
	if err != nil {
		return "", err
	}
	value, err := json.Marshal(loc.Value)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(finderJS, kind, value, mark), nil
}
