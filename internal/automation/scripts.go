package automation

import "github.com/xkilldash9x/remixer/internal/browser"

// In-page scripts. Each Source is a function expression invoked with the
// arguments bound through Script.With.

// findImageURL(fragment, minSize) returns the src of the newest generated image
// in the last response block, or null.
var findImageURL = browser.Script{
	Name: "find-image-url",
	Source: `(fragment, minSize) => {
		const responses = document.querySelectorAll('model-response');
		if (responses.length === 0) return null;
		const last = responses[responses.length - 1];
		let imgs = Array.from(last.querySelectorAll('img[src*="' + fragment + '"]'));
		if (imgs.length === 0) {
			imgs = Array.from(last.querySelectorAll('img'))
				.filter(img => img.naturalWidth > minSize && img.naturalHeight > minSize);
		}
		if (imgs.length === 0) return null;
		return imgs[imgs.length - 1].src;
	}`,
}

// writePrompt(text, selectors) fills the first editor found and fires an input
// event so the app notices. Returns false when no editor exists.
var writePrompt = browser.Script{
	Name: "write-prompt",
	Source: `(text, selectors) => {
		let editor = null;
		for (const sel of selectors) {
			editor = document.querySelector(sel);
			if (editor) break;
		}
		if (!editor) return false;
		const para = editor.tagName === 'P' ? editor : editor.querySelector('p');
		if (para) {
			para.innerText = text;
		} else {
			const p = document.createElement('p');
			p.innerText = text;
			editor.appendChild(p);
		}
		editor.dispatchEvent(new Event('input', { bubbles: true }));
		return true;
	}`,
}

// checkUploadedImage(selectors) reports whether an upload preview is visible.
var checkUploadedImage = browser.Script{
	Name:   "check-uploaded-image",
	Source: `(selectors) => document.querySelectorAll(selectors.join(', ')).length > 0`,
}

// extractResponseText(selector, thoughts) returns the text of the last match
// with the model's reasoning nodes stripped.
var extractResponseText = browser.Script{
	Name: "extract-response-text",
	Source: `(selector, thoughts) => {
		const nodes = document.querySelectorAll(selector);
		if (nodes.length === 0) return '';
		const clone = nodes[nodes.length - 1].cloneNode(true);
		for (const sel of thoughts) {
			clone.querySelectorAll(sel).forEach(n => n.remove());
		}
		return (clone.innerText || clone.textContent || '').trim();
	}`,
}

// clickNth(selector, index) dispatches a script click on the index-th match.
var clickNth = browser.Script{
	Name: "click-nth",
	Source: `(selector, index) => {
		const node = document.querySelectorAll(selector)[index];
		if (!node) return false;
		node.click();
		return true;
	}`,
}

// optionTexts(selector) lists the visible text of every match.
var optionTexts = browser.Script{
	Name:   "option-texts",
	Source: `(selector) => Array.from(document.querySelectorAll(selector)).map(n => (n.innerText || n.textContent || '').trim())`,
}

var userAgent = browser.Script{
	Name:   "user-agent",
	Source: `() => navigator.userAgent`,
}
