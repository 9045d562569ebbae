package web

// pageShellHtml wraps every page served by the web host. {{TITLE}} and {{BODY}} are replaced
// before the page is written; {{BODY}} is trusted markup built from the fragments below.
const pageShellHtml = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{TITLE}}</title>
    <style>
        * {
            box-sizing: border-box;
        }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Oxygen, Ubuntu, Cantarell, sans-serif;
            display: flex;
            justify-content: center;
            align-items: center;
            min-height: 100vh;
            margin: 0;
            background: #f3f4f6;
            padding: 1rem;
        }
        .card {
            text-align: center;
            background: white;
            padding: 2rem;
            border-radius: 8px;
            box-shadow: 0 10px 25px rgba(0,0,0,0.1);
            max-width: 28rem;
            width: 100%;
        }
        h1 {
            font-size: 1.5rem;
            font-weight: 600;
            margin: 0 0 1rem;
            color: #1f2937;
        }
        h1.error {
            color: #dc2626;
        }
        p {
            color: #4b5563;
            margin: 0 0 1.5rem;
        }
        p.error {
            color: #ef4444;
        }
        .button {
            display: inline-block;
            padding: 0.5rem 1.5rem;
            background: #2563eb;
            color: white;
            border-radius: 6px;
            text-decoration: none;
            font-weight: 500;
        }
        .button:hover {
            background: #1d4ed8;
        }
    </style>
</head>
<body>
    <main class="card">
{{BODY}}
    </main>
</body>
</html>`

// authFailedHtml is the terminal failure view of the callback route.
// {{MESSAGE}} and {{LOGIN_ROUTE}} must be HTML-escaped by the caller.
const authFailedHtml = `        <h1 class="error">Authentication Failed</h1>
        <p class="error" role="alert">{{MESSAGE}}</p>
        <a class="button" href="{{LOGIN_ROUTE}}">Return to Login</a>`

// loginHtml is the re-authentication entry page. {{AUTHORIZE_URL}} must be HTML-escaped.
const loginHtml = `        <h1>Sign in</h1>
        <p>Continue with your Google account to use Googler.</p>
        <a class="button" href="{{AUTHORIZE_URL}}">Sign in with Google</a>`

// landingHtml greets an authenticated user. {{USERNAME}} must be HTML-escaped.
const landingHtml = `        <h1>Welcome{{USERNAME}}</h1>
        <p>You are signed in.</p>`
