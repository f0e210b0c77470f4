package resolve

import (
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
)

// rodOps adapts a live Rod page to the PageOps and CaptchaOps interfaces.
// Every interaction is expressed as in-page JavaScript rather than CDP
// element handles: the overlays being dismissed re-render aggressively, and
// a handle resolved a frame earlier is often already stale by click time.
// The page itself is re-derived through the getter on every call, because a
// dismissal click can spawn a pop-up that becomes the page to act on.
type rodOps struct {
	page   func() *rod.Page
	settle time.Duration
}

// NewRodOps wraps a page getter for the resolver.
func NewRodOps(page func() *rod.Page, settle time.Duration) PageOps {
	return &rodOps{page: page, settle: settle}
}

// NewRodCaptchaOps wraps a page getter for the captcha solver.
func NewRodCaptchaOps(page func() *rod.Page, settle time.Duration) CaptchaOps {
	return &rodOps{page: page, settle: settle}
}

func (r *rodOps) evalBool(js string) bool {
	res, err := r.page().Eval(js)
	if err != nil {
		return false
	}
	return res.Value.Bool()
}

func (r *rodOps) ClickCloseControl() bool {
	return r.evalBool(`() => {
		const el = document.querySelector("#attach-close_sideSheet-link");
		if (el && el.offsetParent !== null) { el.click(); return true; }
		return false;
	}`)
}

func (r *rodOps) ClickContinueButton() bool {
	return r.evalBool(`() => {
		const phrases = ["continue shopping", "keep shopping"];
		const els = document.querySelectorAll('button, input[type="submit"], a.a-button-text, span.a-button-inner');
		for (const el of els) {
			const text = ((el.innerText || el.value || el.getAttribute("aria-label") || "") + "").trim().toLowerCase();
			if (phrases.some(p => text === p) && el.offsetParent !== null) {
				el.click();
				return true;
			}
		}
		return false;
	}`)
}

func (r *rodOps) ClickInAttachFrames() bool {
	frames, err := r.page().Elements("iframe")
	if err != nil {
		return false
	}
	for _, f := range frames {
		name, _ := f.Attribute("name")
		src, _ := f.Attribute("src")
		if !attachFrame(name, src) {
			continue
		}
		framePage, frameErr := f.Frame()
		if frameErr != nil {
			continue
		}
		res, evalErr := framePage.Eval(`() => {
			const els = document.querySelectorAll('button, input[type="submit"], a');
			for (const el of els) {
				const text = ((el.innerText || el.value || "") + "").toLowerCase();
				if (text.includes("continue") || text.includes("close")) {
					el.click();
					return true;
				}
			}
			return false;
		}`)
		if evalErr == nil && res.Value.Bool() {
			return true
		}
	}
	return false
}

func attachFrame(name, src *string) bool {
	for _, v := range []*string{name, src} {
		if v == nil {
			continue
		}
		s := strings.ToLower(*v)
		if strings.Contains(s, "attach") || strings.Contains(s, "sidesheet") {
			return true
		}
	}
	return false
}

func (r *rodOps) ClickTextScan() bool {
	return r.evalBool(`() => {
		const phrases = ["continue shopping", "keep shopping", "continue"];
		const els = document.querySelectorAll('button, a, input[type="submit"], div[role="button"], span.a-button-inner');
		for (const el of els) {
			const text = ((el.innerText || el.value || el.getAttribute("aria-label") || "") + "").toLowerCase();
			if (phrases.some(p => text.includes(p)) && el.offsetParent !== null) {
				el.click();
				return true;
			}
		}
		return false;
	}`)
}

func (r *rodOps) PressEscape() bool {
	return r.page().Keyboard.Press(input.Escape) == nil
}

func (r *rodOps) Navigate(url string) error {
	return r.page().Navigate(url)
}

func (r *rodOps) ProductMarkerVisible() bool {
	return r.evalBool(`() => {
		const el = document.querySelector("#productTitle");
		return !!el && el.offsetParent !== null;
	}`)
}

func (r *rodOps) OverlayGone() bool {
	return r.evalBool(`() => {
		const close = document.querySelector("#attach-close_sideSheet-link");
		if (close && close.offsetParent !== null) return false;
		const phrases = ["continue shopping", "keep shopping"];
		const els = document.querySelectorAll('button, a, input[type="submit"]');
		for (const el of els) {
			const text = ((el.innerText || el.value || "") + "").toLowerCase();
			if (phrases.some(p => text.includes(p)) && el.offsetParent !== null) return false;
		}
		return true;
	}`)
}

func (r *rodOps) Settle() {
	time.Sleep(r.settle)
}

// --- CaptchaOps ---

// jpegQualities is the descending quality ladder tried until the screenshot
// fits the solver's payload ceiling.
var jpegQualities = []int{80, 60, 40, 25}

func (r *rodOps) ImageJPEG(maxBytes int) ([]byte, error) {
	el, err := r.page().Element(`img[src*="captcha"]`)
	if err != nil {
		return nil, err
	}

	var data []byte
	for _, q := range jpegQualities {
		data, err = el.Screenshot(proto.PageCaptureScreenshotFormatJpeg, q)
		if err != nil {
			return nil, err
		}
		if len(data) <= maxBytes {
			return data, nil
		}
	}
	// Smallest quality still over the ceiling; let the solver decide.
	return data, nil
}

func (r *rodOps) Enter(answer string) error {
	el, err := r.page().Element("input#captchacharacters")
	if err != nil {
		return err
	}
	if err := el.Input(answer); err != nil {
		return err
	}
	_, err = r.page().Eval(`() => {
		const btn = document.querySelector('button[type="submit"], input[type="submit"]');
		if (btn) { btn.click(); return true; }
		const form = document.querySelector("form");
		if (form) { form.submit(); return true; }
		return false;
	}`)
	return err
}

func (r *rodOps) ChallengeGone() bool {
	return r.evalBool(`() => !document.querySelector("input#captchacharacters")`)
}
