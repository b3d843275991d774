/**
 * API Handlers.
 *
 * Placeholder package for the web dashboard API; it defines no HTTP
 * handlers.
 *
 * Author: KleaSCM
 * Email: KleaSCM@gmail.com
 */

package api
