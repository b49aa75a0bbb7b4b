// Package assets provides the HTML template and CSS of the invoice preview.
//
// Assets are loaded by name through an AssetLoader:
//
//	AssetLoader (interface)
//	    │
//	    ├── EmbeddedLoader    - built-in invoice template and style (go:embed)
//	    ├── FilesystemLoader  - overrides from a directory on disk
//	    └── AssetResolver     - custom first, embedded fallback
//
// A custom directory mirrors the embedded layout:
//
//	{basePath}/
//	├── styles/
//	│   └── {name}.css
//	└── templates/
//	    └── {name}.html
//
// Asset names are validated so that they cannot leave basePath.
package assets
