package agents

import (
	"fmt"
	"strings"
)

// Role templates: deterministic artifacts used when a provider is missing
// or its output cannot be recovered. They produce a runnable baseline app
// matching the default tech stack.

func backendTemplate(ac *Context) Artifacts {
	title := ac.ProjectName
	if title == "" {
		title = "App"
	}

	mainPy := fmt.Sprintf(`from fastapi import FastAPI, HTTPException
from fastapi.middleware.cors import CORSMiddleware
from pydantic import BaseModel

app = FastAPI(title=%q)

app.add_middleware(
    CORSMiddleware,
    allow_origins=["*"],
    allow_methods=["*"],
    allow_headers=["*"],
)


class Item(BaseModel):
    id: int | None = None
    title: str
    done: bool = False


items: dict[int, Item] = {}
next_id = 1


@app.get("/api/items")
def list_items():
    return list(items.values())


@app.post("/api/items", status_code=201)
def create_item(item: Item):
    global next_id
    item.id = next_id
    items[next_id] = item
    next_id += 1
    return item


@app.put("/api/items/{item_id}")
def update_item(item_id: int, item: Item):
    if item_id not in items:
        raise HTTPException(status_code=404, detail="item not found")
    item.id = item_id
    items[item_id] = item
    return item


@app.delete("/api/items/{item_id}", status_code=204)
def delete_item(item_id: int):
    if item_id not in items:
        raise HTTPException(status_code=404, detail="item not found")
    del items[item_id]
`, title)

	return Artifacts{
		"backend/main.py":          mainPy,
		"backend/requirements.txt": "fastapi==0.115.0\nuvicorn[standard]==0.30.6\npydantic==2.9.0\n",
		"backend/models.py": `from pydantic import BaseModel


class Item(BaseModel):
    id: int | None = None
    title: str
    done: bool = False
`,
	}
}

func uixTemplate(ac *Context) Artifacts {
	title := ac.ProjectName
	if title == "" {
		title = "App"
	}

	appJSX := fmt.Sprintf(`import { useEffect, useState } from 'react'
import './index.css'

const API = '/api/items'

export default function App() {
  const [items, setItems] = useState([])
  const [title, setTitle] = useState('')

  useEffect(() => {
    fetch(API).then((r) => r.json()).then(setItems).catch(() => setItems([]))
  }, [])

  async function addItem(e) {
    e.preventDefault()
    if (!title.trim()) return
    const res = await fetch(API, {
      method: 'POST',
      headers: { 'Content-Type': 'application/json' },
      body: JSON.stringify({ title }),
    })
    const created = await res.json()
    setItems([...items, created])
    setTitle('')
  }

  async function removeItem(id) {
    await fetch(API + '/' + id, { method: 'DELETE' })
    setItems(items.filter((i) => i.id !== id))
  }

  return (
    <main className="container">
      <h1>%s</h1>
      <form onSubmit={addItem}>
        <input
          value={title}
          onChange={(e) => setTitle(e.target.value)}
          placeholder="What needs doing?"
        />
        <button type="submit">Add</button>
      </form>
      <ul>
        {items.map((item) => (
          <li key={item.id}>
            <span>{item.title}</span>
            <button onClick={() => removeItem(item.id)}>Delete</button>
          </li>
        ))}
      </ul>
    </main>
  )
}
`, title)

	packageJSON := fmt.Sprintf(`{
  "name": %q,
  "private": true,
  "version": "0.1.0",
  "type": "module",
  "scripts": {
    "dev": "vite",
    "build": "vite build",
    "preview": "vite preview"
  },
  "dependencies": {
    "react": "^18.3.1",
    "react-dom": "^18.3.1"
  },
  "devDependencies": {
    "@vitejs/plugin-react": "^4.3.1",
    "vite": "^5.4.0"
  }
}
`, strings.ToLower(strings.ReplaceAll(title, " ", "-")))

	indexHTML := fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="UTF-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1.0" />
    <title>%s</title>
  </head>
  <body>
    <div id="root"></div>
    <script type="module" src="/src/main.jsx"></script>
  </body>
</html>
`, title)

	return Artifacts{
		"frontend/src/App.jsx":    appJSX,
		"frontend/package.json":   packageJSON,
		"frontend/index.html":     indexHTML,
		"frontend/vite.config.js": viteConfig,
		"frontend/src/main.jsx":   mainJSX,
		"frontend/src/index.css":  indexCSS,
	}
}

const viteConfig = `import { defineConfig } from 'vite'
import react from '@vitejs/plugin-react'

export default defineConfig({
  plugins: [react()],
  server: {
    host: true,
    proxy: {
      '/api': 'http://localhost:8000',
    },
  },
})
`

const mainJSX = `import React from 'react'
import ReactDOM from 'react-dom/client'
import App from './App'

ReactDOM.createRoot(document.getElementById('root')).render(
  <React.StrictMode>
    <App />
  </React.StrictMode>,
)
`

const indexCSS = `:root {
  font-family: system-ui, sans-serif;
  color: #1f2428;
}

.container {
  max-width: 640px;
  margin: 2rem auto;
  padding: 0 1rem;
}

form {
  display: flex;
  gap: 0.5rem;
}

input {
  flex: 1;
  padding: 0.5rem;
}

ul {
  list-style: none;
  padding: 0;
}

li {
  display: flex;
  justify-content: space-between;
  padding: 0.5rem 0;
  border-bottom: 1px solid #e2e5e9;
}
`

func testTemplate(ac *Context) Artifacts {
	return Artifacts{
		"backend/test_main.py": `from fastapi.testclient import TestClient

from main import app

client = TestClient(app)


def test_list_starts_empty():
    assert client.get("/api/items").json() == []


def test_create_and_delete():
    created = client.post("/api/items", json={"title": "first"}).json()
    assert created["title"] == "first"
    assert client.delete(f"/api/items/{created['id']}").status_code == 204


def test_missing_item_404():
    assert client.put("/api/items/999", json={"title": "x"}).status_code == 404
`,
	}
}
