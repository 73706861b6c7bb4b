package models

import "fmt"

const (
	MetaDocID    = "doc_id"
	MetaSource   = "source"
	MetaPage     = "page"
	MetaPosition = "position"

	MaxBatchFiles = 5
	PDFExtension  = ".pdf"
)

// user-facing messages
const (
	MissingAPIKeyMessage     = "Clave de API no encontrada en las variables de entorno."
	NoResponseMessage        = "No se pudo obtener una respuesta de la API."
	DocumentNotFoundMessage  = "No se pudo encontrar el contenido del documento '%s'."
	NoFilesMessage           = "Por favor, sube al menos un archivo PDF."
	TooManyFilesMessage      = "Por favor, sube un máximo de 5 archivos PDF."
	OnlyPDFMessage           = "Solo se permiten archivos PDF."
	ProcessFirstMessage      = "Por favor, procesa los PDFs primero."
	ProcessedMessage         = "PDFs procesados correctamente. ¡Ahora puedes hacer preguntas!"
	ProcessingErrorMessage   = "Ocurrió un error al procesar los PDFs: %v"
	SameDocumentsMessage     = "Por favor, selecciona dos documentos diferentes para comparar."
	ComparisonNotFoundJoiner = " o "
)

// DefaultTopics is the closed set of classification labels
var DefaultTopics = []string{
	"Negocios y Finanzas",
	"Ciencia y Tecnología",
	"Salud y Medicina",
	"Arte y Cultura",
	"Política y Sociedad",
	"Otros",
}

// Prompt templates are filled with fmt.Sprintf in the listed argument order.
var (
	// history, question, context
	ChatPromptTemplate = "Eres un útil asistente de preguntas y respuestas. Usa las siguientes partes de contexto " +
		"recuperado para responder a la pregunta. Si no sabes la respuesta, solo di que no la sabes. " +
		"No intentes inventar una respuesta. Mantén tu respuesta concisa. Responde siempre en español.\n" +
		"Historial del chat: %s\n" +
		"Pregunta: %s\n" +
		"Contexto: %s\n" +
		"Respuesta:"

	// topics list, document text
	TopicPromptTemplate = "Clasifica el siguiente texto con un tema de la lista: %s. " +
		"La respuesta debe ser solo el nombre del tema y en español.\n" +
		"EJEMPLO:\n" +
		"Texto: 'El informe financiero trimestral muestra un crecimiento del 5%%.'\n" +
		"Tema: 'Negocios y Finanzas'\n\n" +
		"Texto: '%s'\n" +
		"Resultado:"

	// full text
	SummaryPromptTemplate = "Por favor, proporciona un resumen conciso del siguiente documento en español: '%s'"

	// document 1 text, document 2 text
	ComparisonPromptTemplate = "Compara los siguientes dos textos e identifica sus similitudes y diferencias " +
		"en un resumen bien estructurado y en español.\n\n" +
		"Documento 1:\n%s\n\n" +
		"Documento 2:\n%s"
)

// DocumentNotFound formats the not-found message for a document name
func DocumentNotFound(name string) string {
	return fmt.Sprintf(DocumentNotFoundMessage, name)
}
