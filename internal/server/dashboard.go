package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Minimal operator dashboard: recent detections for a user, fetched from the
// JSON API client-side. Served at / so an on-call engineer can triage without
// curl.
const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>RenderIQ Sybil</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        :root {
            --bg: #09090b;
            --bg-subtle: #18181b;
            --border: #27272a;
            --text: #fafafa;
            --text-secondary: #a1a1aa;
            --low: #22c55e;
            --medium: #f59e0b;
            --high: #f97316;
            --critical: #ef4444;
        }
        body {
            font-family: -apple-system, 'Segoe UI', sans-serif;
            background: var(--bg);
            color: var(--text);
            min-height: 100vh;
            font-size: 14px;
            line-height: 1.5;
        }
        .container { max-width: 860px; margin: 0 auto; padding: 40px 20px; }
        h1 { font-size: 20px; margin-bottom: 4px; }
        .sub { color: var(--text-secondary); margin-bottom: 24px; }
        form { display: flex; gap: 8px; margin-bottom: 24px; }
        input {
            flex: 1; padding: 8px 12px; background: var(--bg-subtle);
            border: 1px solid var(--border); border-radius: 6px; color: var(--text);
        }
        button {
            padding: 8px 16px; background: var(--bg-subtle); color: var(--text);
            border: 1px solid var(--border); border-radius: 6px; cursor: pointer;
        }
        .card {
            background: var(--bg-subtle); border: 1px solid var(--border);
            border-radius: 8px; padding: 16px; margin-bottom: 12px;
        }
        .row { display: flex; justify-content: space-between; margin-bottom: 8px; }
        .level { font-weight: 600; text-transform: uppercase; font-size: 12px; }
        .level.low { color: var(--low); }
        .level.medium { color: var(--medium); }
        .level.high { color: var(--high); }
        .level.critical { color: var(--critical); }
        .reasons { color: var(--text-secondary); font-size: 13px; }
        .empty { color: var(--text-secondary); }
    </style>
</head>
<body>
    <div class="container">
        <h1>Signup Risk Detections</h1>
        <div class="sub">Evidence feed for duplicate-account scoring</div>
        <form id="lookup">
            <input id="userId" placeholder="user ID, e.g. usr_abc123" required>
            <button type="submit">Load</button>
        </form>
        <div id="results"></div>
    </div>
    <script>
        const form = document.getElementById('lookup');
        const results = document.getElementById('results');
        form.addEventListener('submit', async (e) => {
            e.preventDefault();
            const id = document.getElementById('userId').value.trim();
            results.innerHTML = '<div class="empty">Loading…</div>';
            try {
                const res = await fetch('/v1/users/' + encodeURIComponent(id) + '/detections');
                const data = await res.json();
                if (!data.detections || data.detections.length === 0) {
                    results.innerHTML = '<div class="empty">No detections for this user.</div>';
                    return;
                }
                results.innerHTML = data.detections.map(d => ` + "`" + `
                    <div class="card">
                        <div class="row">
                            <span class="level ${d.riskLevel}">${d.riskLevel} · ${d.riskScore}</span>
                            <span>${new Date(d.createdAt).toLocaleString()}</span>
                        </div>
                        <div class="row">
                            <span>Credits awarded: ${d.creditsAwarded}</span>
                            <span>Linked: ${(d.linkedAccounts || []).length}</span>
                        </div>
                        <div class="reasons">${(d.reasons || []).join('<br>') || 'no signals'}</div>
                    </div>` + "`" + `).join('');
            } catch (err) {
                results.innerHTML = '<div class="empty">Failed to load: ' + err + '</div>';
            }
        });
    </script>
</body>
</html>`

func dashboardHandler(c *gin.Context) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, dashboardHTML)
}
