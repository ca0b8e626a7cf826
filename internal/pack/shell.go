package pack

import "html/template"

type shellData struct {
	Version     string
	FileName    string
	MimeType    string
	MimeDisplay string
	SizeBytes   int64
	SizeDisplay string
	Base64      string
}

// shellTemplate renders the human-facing side of a package. The hidden
// element at the top is the machine-extractable region; the script reads
// the same attributes, so the document can redeem itself without this
// codebase present.
var shellTemplate = template.Must(template.New("shell").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>Offline Share Package - {{.FileName}}</title>
  <style>
    * { margin: 0; padding: 0; box-sizing: border-box; }
    body {
      font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Arial, sans-serif;
      background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
      min-height: 100vh;
      display: flex;
      align-items: center;
      justify-content: center;
      padding: 20px;
    }
    .container {
      background: white;
      border-radius: 16px;
      box-shadow: 0 20px 60px rgba(0,0,0,0.3);
      max-width: 500px;
      width: 100%;
      padding: 40px;
      text-align: center;
    }
    h1 { font-size: 24px; color: #333; margin-bottom: 10px; }
    .file-info {
      background: #f7f7f7;
      border-radius: 8px;
      padding: 20px;
      margin: 20px 0;
      text-align: left;
    }
    .file-info p { margin: 8px 0; color: #666; font-size: 14px; }
    .file-info strong { color: #333; }
    button {
      background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
      color: white;
      border: none;
      padding: 14px 32px;
      font-size: 16px;
      font-weight: 600;
      border-radius: 8px;
      cursor: pointer;
      width: 100%;
    }
    .footer { margin-top: 30px; font-size: 12px; color: #999; }
    .success {
      display: none;
      background: #d4edda;
      color: #155724;
      padding: 12px;
      border-radius: 8px;
      margin-top: 20px;
      font-size: 14px;
    }
  </style>
</head>
<body>
  <div id="ofs-payload" style="display: none;"
       data-version="{{.Version}}"
       data-filename="{{.FileName}}"
       data-filetype="{{.MimeType}}"
       data-filesize="{{.SizeBytes}}"
       data-filedata="{{.Base64}}">
  </div>

  <div class="container">
    <h1>Offline Share Package</h1>
    <p style="color: #666; margin-bottom: 20px;">A file has been shared with you</p>

    <div class="file-info">
      <p><strong>File name:</strong> {{.FileName}}</p>
      <p><strong>File type:</strong> {{.MimeDisplay}}</p>
      <p><strong>File size:</strong> {{.SizeDisplay}}</p>
    </div>

    <button onclick="saveFile()">Save to Device</button>
    <div class="success" id="success">File saved successfully</div>

    <div class="footer">
      <p>This package works offline &mdash; no internet required</p>
    </div>
  </div>

  <script>
    const holder = document.getElementById('ofs-payload');
    const fileData = {
      name: holder.dataset.filename,
      type: holder.dataset.filetype || 'application/octet-stream',
      base64: holder.dataset.filedata
    };

    function base64ToBlob(base64, type) {
      const binaryString = atob(base64);
      const bytes = new Uint8Array(binaryString.length);
      for (let i = 0; i < binaryString.length; i++) {
        bytes[i] = binaryString.charCodeAt(i);
      }
      return new Blob([bytes], { type: type });
    }

    async function saveFile() {
      try {
        const blob = base64ToBlob(fileData.base64, fileData.type);

        if ('showSaveFilePicker' in window) {
          try {
            const handle = await window.showSaveFilePicker({
              suggestedName: fileData.name,
              types: [{ description: 'File', accept: { [fileData.type]: [] } }]
            });
            const writable = await handle.createWritable();
            await writable.write(blob);
            await writable.close();
            showSuccess();
            return;
          } catch (err) {
            if (err.name === 'AbortError') return;
          }
        }

        const url = URL.createObjectURL(blob);
        const a = document.createElement('a');
        a.href = url;
        a.download = fileData.name;
        document.body.appendChild(a);
        a.click();
        document.body.removeChild(a);
        URL.revokeObjectURL(url);
        showSuccess();
      } catch (error) {
        alert('Failed to save file: ' + error.message);
      }
    }

    function showSuccess() {
      document.getElementById('success').style.display = 'block';
      setTimeout(() => {
        document.getElementById('success').style.display = 'none';
      }, 3000);
    }
  </script>
</body>
</html>
`))
