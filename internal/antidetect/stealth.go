package antidetect

// StealthScript 在每个文档加载前注入,隐藏自动化特征
const StealthScript = `(() => {
	Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
	Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3, 4, 5] });
	Object.defineProperty(navigator, 'languages', { get: () => ['zh-CN', 'zh', 'en'] });
	window.chrome = window.chrome || { runtime: {} };
	const originalQuery = window.navigator.permissions && window.navigator.permissions.query;
	if (originalQuery) {
		window.navigator.permissions.query = (parameters) => (
			parameters.name === 'notifications'
				? Promise.resolve({ state: Notification.permission })
				: originalQuery.call(window.navigator.permissions, parameters)
		);
	}
})();`

// LaunchFlags 浏览器启动参数,值为空表示无值开关
func LaunchFlags() map[string]string {
	return map[string]string{
		"disable-blink-features":   "AutomationControlled",
		"no-sandbox":               "",
		"disable-dev-shm-usage":    "",
		"disable-infobars":         "",
		"no-first-run":             "",
		"no-default-browser-check": "",
		"window-size":              "1920,1080",
		"lang":                     "zh-CN",
		"disable-features":         "IsolateOrigins,site-per-process",
	}
}
