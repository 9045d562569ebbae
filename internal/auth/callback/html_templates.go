package callback

// callbackReceivedHtml is served to the browser once the redirect reached the local server.
// The terminal completes the exchange and reports the outcome.
const callbackReceivedHtml = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Authentication Received - Googler</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            display: flex;
            justify-content: center;
            align-items: center;
            min-height: 100vh;
            margin: 0;
            background: #f3f4f6;
        }
        .card {
            text-align: center;
            background: white;
            padding: 2rem;
            border-radius: 8px;
            box-shadow: 0 10px 25px rgba(0,0,0,0.1);
            max-width: 28rem;
        }
        h1 {
            color: #1f2937;
            font-size: 1.5rem;
        }
        p {
            color: #4b5563;
        }
    </style>
</head>
<body>
    <div class="card">
        <h1>Authenticating...</h1>
        <p>Please return to your terminal while we complete your sign-in. You can close this window.</p>
    </div>
</body>
</html>`
