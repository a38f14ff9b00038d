package hooks

// Тексты уведомлений. Язык пользователей - испанский.
const (
	msgPostsLoad         = "No se pudieron cargar los posts"
	msgPostLogin         = "Debes iniciar sesión para crear un post"
	msgPostCreated       = "Tu tema ha sido publicado correctamente"
	msgPostCreateFailed  = "No se pudo publicar el tema. Inténtalo de nuevo."
	msgRacePostCreated   = "Tu post ha sido publicado correctamente"
	msgPostEditLogin     = "Debes iniciar sesión para editar un post"
	msgPostUpdated       = "El aviso ha sido actualizado correctamente"
	msgPostUpdateFailed  = "No se pudo actualizar el aviso. Inténtalo de nuevo."
	msgPostDeleteLogin   = "Debes iniciar sesión para eliminar un post"
	msgPostDeleted       = "El aviso ha sido eliminado correctamente"
	msgPostDeleteFailed  = "No se pudo eliminar el aviso. Inténtalo de nuevo."
	msgPostInvalid       = "El título y el contenido son obligatorios"
	msgUploadFailed      = "No se pudieron subir los archivos. Inténtalo de nuevo."
	msgRacesLoad         = "No se pudieron cargar las carreras"
	msgRaceLogin         = "Debes iniciar sesión para crear una carrera"
	msgRaceDate          = "Debes seleccionar una fecha para la carrera"
	msgRaceCreated       = "Tu carrera ha sido publicada correctamente"
	msgRaceCreateFailed  = "No se pudo publicar la carrera. Inténtalo de nuevo."
	msgRaceDeleteLogin   = "Debes iniciar sesión para eliminar una carrera"
	msgRaceDeletedTitle  = "Carrera eliminada"
	msgRaceDeleted       = "La carrera y su post asociado han sido eliminados."
	msgRaceDeleteFailed  = "No se pudo eliminar la carrera"
	msgCommentsLoad      = "No se pudieron cargar los comentarios"
	msgCommentLogin      = "Debes iniciar sesión para comentar"
	msgCommentTitle      = "¡Comentario publicado!"
	msgCommentCreated    = "Tu comentario ha sido agregado correctamente"
	msgCommentFailed     = "No se pudo publicar el comentario"
	msgCommentUpdated    = "Tu comentario ha sido actualizado"
	msgCommentUpdateFail = "No se pudo actualizar el comentario"
	msgCommentDeleted    = "El comentario ha sido eliminado"
	msgCommentDeleteFail = "No se pudo eliminar el comentario"
	msgCommentEmpty      = "El comentario no puede estar vacío"
	msgCanchasLoad       = "No se pudieron cargar las canchas"
	msgCanchaLogin       = "Debes estar autenticado para crear una cancha"
	msgCanchaCreated     = "Cancha creada correctamente"
	msgCanchaFailed      = "No se pudo crear la cancha"
	msgProfileTitle      = "Perfil actualizado"
	msgProfileSaved      = "Tus cambios se han guardado correctamente."
	msgProfileFailed     = "No se pudo guardar"
	msgProfileLogin      = "Debes iniciar sesión para editar tu perfil"
	msgAvatarFailed      = "No se pudo subir la imagen de perfil"
	msgProfilesLoad      = "No se pudo cargar el perfil"
	msgCarouselLoad      = "No se pudieron cargar los anuncios"
	msgMessagesLoad      = "No se pudieron cargar los mensajes"
	msgMessageLogin      = "Debes iniciar sesión para enviar mensajes"
	msgMessageFailed     = "No se pudo enviar el mensaje"
	msgMessageEmpty      = "El mensaje no puede estar vacío"
	msgMessageReadFailed = "No se pudo marcar el mensaje como leído"
	msgPollsLoad         = "No se pudieron cargar las encuestas"
	msgPollLogin         = "Debes iniciar sesión para crear encuestas"
	msgPollTitle         = "¡Encuesta creada!"
	msgPollCreated       = "Tu encuesta ha sido publicada correctamente"
	msgPollFailed        = "No se pudo crear la encuesta"
	msgPollInvalid       = "La encuesta necesita una pregunta y al menos dos opciones"
	msgPollDeleted       = "La encuesta ha sido eliminada"
	msgPollDeleteFailed  = "No se pudo eliminar la encuesta"
	msgVoteLogin         = "Debes iniciar sesión para votar"
	msgVoteTitle         = "¡Voto registrado!"
	msgVoteCounted       = "Tu voto ha sido contabilizado"
	msgVoteFailed        = "No se pudo registrar el voto"
	msgPostVoteFailed    = "Error al votar. Inténtalo de nuevo."
	msgOptionLogin       = "Debes iniciar sesión para agregar opciones"
	msgOptionTitle       = "¡Opción agregada!"
	msgOptionAdded       = "La nueva opción ha sido añadida a la encuesta"
	msgOptionFailed      = "No se pudo agregar la opción"
	msgAttendLogin       = "Debes iniciar sesión para confirmar asistencia"
	msgAttendFailed      = "No se pudo actualizar tu asistencia"
)
