package epubpkg

// stylesheet is the single container-wide CSS resource required by spec
// §4.G/§6: paragraph, heading, image, TOC-list, footnote-link, and
// footnote-aside styling. Grounded on the teacher's original
// epub_builder.py self.css block, re-expressed as a Go constant.
const stylesheet = `
body { margin: 0; padding: 5px; text-align: justify; line-height: 1.4em; font-family: serif; }
h1, h2, h3 { text-align: center; margin: 1em 0; font-weight: bold; }
img { display: block; margin: 10px auto; max-width: 100%; height: auto; }
p { margin-bottom: 1em; text-indent: 1em; }
.center { text-align: center; }
nav#toc ol { list-style-type: none; padding-left: 0; }
nav#toc > ol > li { margin-top: 1em; font-weight: bold; }
nav#toc > ol > li > ol { list-style-type: none; padding-left: 1.5em; font-weight: normal; }
nav#toc > ol > li > ol > li { margin-top: 0.5em; }
nav#toc a { text-decoration: none; color: inherit; }
a.footnote-link { vertical-align: super; font-size: 0.75em; text-decoration: none; color: #007bff; margin-left: 2px; }
aside.footnote-content { margin-top: 1em; padding: 0.5em; border-top: 1px solid #ccc; font-size: 0.9em; color: #333; background-color: #f9f9f9; display: block; }
aside.footnote-content p { margin: 0; text-indent: 0; }
aside.footnote-content div.note-header { font-weight: bold; margin-bottom: 0.5em; color: #555; }
`
