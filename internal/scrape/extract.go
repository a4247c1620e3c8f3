package scrape

// extractJS pulls lead rows out of the listing DOM. The source uses a
// div-based layout where contact name links carry a query string, so the
// extractor anchors on those links and walks up to the row container
// instead of relying on CSS class names that change between deploys.
const extractJS = `(() => {
	const results = [];
	const seen = new Set();

	const links = Array.from(document.querySelectorAll('a')).filter(a => {
		const h = a.getAttribute('href') || '';
		return (h.includes('/contacts/') || h.includes('/people/')) && h.includes('?');
	});

	for (const link of links) {
		const name = (link.textContent || '').trim();
		if (!name || name.length < 2 || seen.has(name)) continue;
		seen.add(name);

		let row = null;
		let el = link.parentElement;
		for (let i = 0; i < 8 && el; i++) {
			const linkCount = el.querySelectorAll('a[href*="/contacts/"], a[href*="/accounts/"]').length;
			if (linkCount >= 2) { row = el; break; }
			el = el.parentElement;
		}
		if (!row) row = link.parentElement && link.parentElement.parentElement;
		if (!row) continue;

		const parts = name.split(' ');
		const lead = {
			first_name: parts[0] || '',
			last_name:  parts.slice(1).join(' '),
			job_title:  '',
			company:    '',
			location:   ''
		};

		const children = Array.from(row.children);
		const nameIdx = children.findIndex(c => c === link || c.contains(link));

		const companyDiv = children.find(c =>
			c.querySelector('a[href*="/accounts/"]') || c.querySelector('a[href*="/companies/"]')
		);
		if (companyDiv) lead.company = (companyDiv.innerText || '').trim().split('\n')[0].trim();

		if (nameIdx + 1 < children.length) {
			const jt = (children[nameIdx + 1].innerText || '').trim().split('\n')[0].trim();
			if (jt && jt.length < 100) lead.job_title = jt;
		}

		const SKIP = ['no email', 'unlock email', 'no phone', 'request phone', 'click to run', 'add to sequence'];
		for (let i = nameIdx + 2; i < children.length; i++) {
			const child = children[i];
			if (child === companyDiv) continue;
			const text = (child.innerText || '').trim().split('\n')[0].trim();
			if (!text || text.length > 60 || /^\d+$/.test(text)) continue;
			if (SKIP.some(p => text.toLowerCase().includes(p))) continue;
			if (text.includes('@') || /^https?:\/\//.test(text)) continue;
			lead.location = text;
			break;
		}

		results.push(lead);
	}
	return results;
})()`

// nextPageJS clicks the first enabled "next page" control and reports
// whether the click happened.
const nextPageJS = `(() => {
	const selectors = [
		"button[aria-label='Next']",
		"button[data-cy='next-page']",
		"button[aria-label='Next page']",
		"button[aria-label='Go to next page']",
		"[class*='pagination'] button:last-child",
		"[class*='Pagination'] button:last-child"
	];
	for (const sel of selectors) {
		const btn = document.querySelector(sel);
		if (!btn) continue;
		if (btn.disabled || btn.getAttribute('aria-disabled') === 'true') return false;
		btn.click();
		return true;
	}
	return false;
})()`
