// internal/services/export_service.go
package services

import (
	"bytes"
	"encoding/json"
	"text/template"

	apperrors "github.com/douju/douju-editor/internal/errors"
	"github.com/douju/douju-editor/internal/storage"
	"github.com/douju/douju-editor/internal/store"
	"github.com/douju/douju-editor/internal/utils"
)

const exportsDir = "exports"

// ExportService packages a read-only story snapshot into a standalone
// Flutter player source file. The export is one-way; nothing feeds back
// into the editor beyond the success result.
type ExportService struct {
	Store   *store.GraphStore
	Storage *storage.FileStorage
	logger  *utils.Logger
}

// NewExportService creates an export service.
func NewExportService(s *store.GraphStore, fs *storage.FileStorage) *ExportService {
	return &ExportService{
		Store:   s,
		Storage: fs,
		logger:  utils.GetLogger(),
	}
}

// flutterMainTemplate is the player app shell. The snapshot JSON is
// embedded as a Dart raw multi-line string and traversed at runtime the
// same way the in-editor player does: a missing node renders the
// end-of-story screen.
var flutterMainTemplate = template.Must(template.New("main.dart").Parse(`
import 'dart:convert';
import 'package:flutter/material.dart';

void main() => runApp(const MovieApp());

class MovieApp extends StatelessWidget {
  const MovieApp({super.key});
  @override
  Widget build(BuildContext context) {
    return MaterialApp(
      theme: ThemeData.dark(),
      home: const MoviePlayer(),
    );
  }
}

class MoviePlayer extends StatefulWidget {
  const MoviePlayer({super.key});
  @override
  State<MoviePlayer> createState() => _MoviePlayerState();
}

class _MoviePlayerState extends State<MoviePlayer> {
  final Map<String, dynamic> project = jsonDecode('''{{.ProjectJSON}}''');
  late String currentId;

  @override
  void initState() {
    super.initState();
    currentId = project['startId'];
  }

  void nextNode(String id) {
    setState(() => currentId = id);
  }

  @override
  Widget build(BuildContext context) {
    final node = project['nodes'][currentId];
    if (node == null) return const Center(child: Text('剧终'));

    return Scaffold(
      backgroundColor: Colors.black,
      body: Stack(
        children: [
          Positioned.fill(
            child: node['mediaSrc'] != ""
              ? Image.network(node['mediaSrc'], fit: BoxFit.cover)
              : Container(color: Colors.grey[900]),
          ),
          Align(
            alignment: Alignment.bottomCenter,
            child: Container(
              margin: const EdgeInsets.all(20),
              padding: const EdgeInsets.all(24),
              decoration: BoxDecoration(
                color: Colors.black.withOpacity(0.6),
                borderRadius: BorderRadius.circular(16),
              ),
              child: Column(
                mainAxisSize: MainAxisSize.min,
                crossAxisAlignment: CrossAxisAlignment.start,
                children: [
                  Text(node['title'], style: const TextStyle(fontSize: 24, fontWeight: FontWeight.bold, color: Colors.cyan)),
                  const SizedBox(height: 12),
                  Text(node['content'], style: const TextStyle(fontSize: 16, height: 1.5)),
                  const SizedBox(height: 24),
                  ...node['options'].map((opt) => Padding(
                    padding: const EdgeInsets.only(bottom: 8),
                    child: ElevatedButton(
                      style: ElevatedButton.styleFrom(minimumSize: const Size(double.infinity, 50)),
                      onPressed: () => nextNode(opt['targetId']),
                      child: Text(opt['label']),
                    ),
                  )).toList(),
                ],
              ),
            ),
          ),
        ],
      ),
    );
  }
}
`))

// BuildFlutterPlayer renders the standalone player source for the current
// graph and the given start node.
func (s *ExportService) BuildFlutterPlayer(startID string) ([]byte, error) {
	snapshot := s.Store.ExportSnapshot(startID)

	projectJSON, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return nil, apperrors.NewProcessingError("serialize story snapshot", err)
	}

	var buf bytes.Buffer
	err = flutterMainTemplate.Execute(&buf, struct {
		ProjectJSON string
	}{ProjectJSON: string(projectJSON)})
	if err != nil {
		return nil, apperrors.NewProcessingError("render player source", err)
	}
	return buf.Bytes(), nil
}

// SaveFlutterPlayer renders the player source and writes it under the
// exports directory, returning the stored file path.
func (s *ExportService) SaveFlutterPlayer(startID string) (string, error) {
	code, err := s.BuildFlutterPlayer(startID)
	if err != nil {
		return "", err
	}
	if err := s.Storage.SaveTextFile(exportsDir, "main.dart", code); err != nil {
		return "", apperrors.NewProcessingError("save player source", err)
	}
	path := s.Storage.FilePath(exportsDir, "main.dart")
	s.logger.Info("flutter player exported", map[string]interface{}{"path": path})
	return path, nil
}
